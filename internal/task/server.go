package task

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/tasktracker/pkg/cerr"
)

type Server struct {
	service *Service
}

func NewServer(service *Service) *Server {
	return &Server{service: service}
}

// Routes mounts the task, archive and notification endpoints on r.
func (s *Server) Routes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.listTasks)
		r.Post("/", s.createTask)
		r.Put("/", s.updateTaskFromBody)
		r.Post("/recurring", s.createRecurring)
		r.Get("/recurring/preview", s.previewRecurring)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getTask)
			r.Patch("/", s.updateTask)
			r.Delete("/", s.archiveTask)
			r.Post("/toggle-done", s.toggleDone)
		})
	})
	r.Route("/archive", func(r chi.Router) {
		r.Get("/", s.listArchived)
		r.Post("/", s.archiveFromBody)
		r.Put("/", s.restoreFromBody)
		r.Delete("/", s.deleteFromBody)
	})
	r.Get("/notifications", s.notifications)
}

type taskResponse struct {
	Task *Task `json:"task"`
}

type tasksResponse struct {
	Tasks []*Task `json:"tasks"`
}

type archiveRequest struct {
	TaskID string `json:"taskId"`
}

type deleteResponse struct {
	Success      bool `json:"success"`
	DeletedCount int  `json:"deletedCount"`
}

func filterFromQuery(r *http.Request) Filter {
	q := r.URL.Query()
	return Filter{
		Project:    q.Get("project"),
		Priority:   q.Get("priority"),
		Status:     q.Get("status"),
		Frequency:  q.Get("frequency"),
		StageGates: q.Get("stage_gates"),
		TaskType:   q.Get("task_type"),
		AssignedTo: q.Get("assigned_to"),
	}
}

func sortFromQuery(r *http.Request, archived bool) (Sort, error) {
	q := r.URL.Query()
	sort, err := ParseSort(q.Get("sortBy"), q.Get("sortOrder"), archived)
	if err != nil {
		return Sort{}, cerr.NewError(cerr.InvalidArgument, "invalid sort", err).AddDetailMessage(err.Error())
	}
	return sort, nil
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sort, err := sortFromQuery(r, false)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	tasks, err := s.service.ListActive(ctx, filterFromQuery(r), sort)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &tasksResponse{Tasks: nonNil(tasks)})
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.service.Create(ctx, req)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, &taskResponse{Task: t})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := s.service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &taskResponse{Task: t})
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var patch Patch
	if err := cerr.DecodeJSON(r, &patch); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.update(w, r, chi.URLParam(r, "id"), patch)
}

// updateTaskFromBody serves PUT /tasks, which names the task in the body.
func (s *Server) updateTaskFromBody(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body struct {
		ID string `json:"id"`
		Patch
	}
	if err := cerr.DecodeJSON(r, &body); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if body.ID == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "id is required", nil)
		return
	}
	s.update(w, r, body.ID, body.Patch)
}

func (s *Server) update(_ http.ResponseWriter, r *http.Request, id string, patch Patch) {
	ctx := r.Context()
	t, err := s.service.Update(ctx, id, patch)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &taskResponse{Task: t})
}

func (s *Server) toggleDone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := s.service.ToggleDone(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &taskResponse{Task: t})
}

// archiveTask serves DELETE /tasks/{id}. Deleting an active task archives it.
func (s *Server) archiveTask(w http.ResponseWriter, r *http.Request) {
	s.archive(r, chi.URLParam(r, "id"))
}

func (s *Server) archive(r *http.Request, id string) {
	ctx := r.Context()
	t, err := s.service.Archive(ctx, id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &taskResponse{Task: t})
}

func (s *Server) createRecurring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req RecurringRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	res, err := s.service.CreateRecurring(ctx, req)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, res)
}

type previewResponse struct {
	Count int    `json:"count"`
	Dates []Date `json:"dates"`
}

func (s *Server) previewRecurring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	rng, err := rangeFromQuery(q.Get("range_start"), q.Get("range_end"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	dates, err := Occurrences(Frequency(q.Get("cadence")), rng)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &previewResponse{Count: len(dates), Dates: nonNil(dates)})
}

func rangeFromQuery(start, end string) (Range, error) {
	from, err := ParseDate(start)
	if err != nil {
		return Range{}, cerr.NewError(cerr.InvalidArgument, "invalid range_start", err).AddDetailMessage(err.Error())
	}
	to, err := ParseDate(end)
	if err != nil {
		return Range{}, cerr.NewError(cerr.InvalidArgument, "invalid range_end", err).AddDetailMessage(err.Error())
	}
	return Range{Start: from, End: to}, nil
}

func (s *Server) listArchived(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sort, err := sortFromQuery(r, true)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	tasks, err := s.service.ListArchived(ctx, sort)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &tasksResponse{Tasks: nonNil(tasks)})
}

func decodeArchiveRequest(r *http.Request) (string, error) {
	var req archiveRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		return "", err
	}
	if req.TaskID == "" {
		return "", cerr.NewError(cerr.InvalidArgument, "taskId is required", nil)
	}
	return req.TaskID, nil
}

func (s *Server) archiveFromBody(w http.ResponseWriter, r *http.Request) {
	id, err := decodeArchiveRequest(r)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	s.archive(r, id)
}

func (s *Server) restoreFromBody(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := decodeArchiveRequest(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.service.Restore(ctx, id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &taskResponse{Task: t})
}

func (s *Server) deleteFromBody(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := decodeArchiveRequest(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	n, err := s.service.PermanentlyDelete(ctx, id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &deleteResponse{Success: true, DeletedCount: n})
}

type notificationsResponse struct {
	Notifications []Notification `json:"notifications"`
}

func (s *Server) notifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ns, err := s.service.Notifications(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &notificationsResponse{Notifications: nonNil(ns)})
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
