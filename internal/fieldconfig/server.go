package fieldconfig

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/tasktracker/pkg/cerr"
)

type Server struct {
	store *Store
}

func NewServer(store *Store) *Server {
	return &Server{store: store}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/task-fields", s.listFields)
	r.Get("/dropdown-options", s.listOptions)
}

type fieldsResponse struct {
	Fields []*Field `json:"fields"`
}

func (s *Server) listFields(w http.ResponseWriter, r *http.Request) {
	fields := s.store.Config().VisibleFields()
	if fields == nil {
		fields = []*Field{}
	}
	cerr.SetJSONResponse(r.Context(), &fieldsResponse{Fields: fields})
}

type dropdownOption struct {
	FieldName FieldName `json:"field_name"`
	Option
}

type optionsResponse struct {
	Options []dropdownOption `json:"options"`
}

// listOptions returns the active options of one field, or of every field when
// field_name is absent.
func (s *Server) listOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	names := FieldNames
	if n := r.URL.Query().Get("field_name"); n != "" {
		name := FieldName(n)
		if !name.Valid() {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "unknown field_name", nil)
			return
		}
		names = []FieldName{name}
	}
	cfg := s.store.Config()
	out := []dropdownOption{}
	for _, n := range names {
		f, ok := cfg.Field(n)
		if !ok {
			continue
		}
		for _, o := range f.ActiveOptions() {
			out = append(out, dropdownOption{FieldName: n, Option: o})
		}
	}
	cerr.SetJSONResponse(ctx, &optionsResponse{Options: out})
}
