package pushnotification

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/tasktracker/internal/config"
	"github.com/kazz187/tasktracker/internal/pushsubscription"
	"github.com/kazz187/tasktracker/internal/pushsubscription/repositoryimpl"
	"github.com/kazz187/tasktracker/internal/task"
	"github.com/kazz187/tasktracker/pkg/cerr"
	"github.com/kazz187/tasktracker/pkg/storage"
)

func newRepo(t *testing.T) *repositoryimpl.YAMLRepository {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return repositoryimpl.NewYAMLRepository(s)
}

func newVAPIDEnv(t *testing.T) *config.VAPIDEnv {
	t.Helper()
	priv, pub, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return &config.VAPIDEnv{
		VAPIDPublicKey:  pub,
		VAPIDPrivateKey: priv,
		VAPIDContact:    "mailto:ops@example.com",
	}
}

// clientKeys returns a browser-side p256dh public key and auth secret.
func clientKeys(t *testing.T) (string, string) {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	secret := make([]byte, 16)
	_, err = rand.Read(secret)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		base64.RawURLEncoding.EncodeToString(secret)
}

func subscribe(t *testing.T, repo pushsubscription.Repository, endpoint string) {
	t.Helper()
	p256dh, auth := clientKeys(t)
	require.NoError(t, repo.Upsert(context.Background(), &pushsubscription.Subscription{
		Endpoint:  endpoint,
		P256dhKey: p256dh,
		AuthKey:   auth,
	}))
}

func TestSender_SendToAll(t *testing.T) {
	var hits atomic.Int32
	push := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "aes128gcm", r.Header.Get("Content-Encoding"))
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "vapid "))
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(push.Close)

	ctx := context.Background()
	repo := newRepo(t)
	subscribe(t, repo, push.URL+"/live")
	subscribe(t, repo, push.URL+"/gone")

	sender := NewSender(newVAPIDEnv(t), repo, WithHTTPClient(push.Client()))
	sent := sender.SendToAll(ctx, &NotificationPayload{Title: "t", Body: "b"})

	assert.Equal(t, 1, sent)
	assert.EqualValues(t, 2, hits.Load())

	subs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, push.URL+"/live", subs[0].Endpoint)
}

func TestSender_NotConfigured(t *testing.T) {
	repo := newRepo(t)
	subscribe(t, repo, "https://push.example/a")
	sender := NewSender(&config.VAPIDEnv{}, repo)
	assert.False(t, sender.Configured())
	assert.Zero(t, sender.SendToAll(context.Background(), &NotificationPayload{Title: "t"}))
}

func notification(label string, days int, typ task.NotificationType) task.Notification {
	return task.Notification{
		Label:       label,
		Description: "desc " + label,
		DaysUntil:   days,
		Type:        typ,
		Text:        task.DueText(days),
	}
}

func TestDigest(t *testing.T) {
	assert.Nil(t, Digest(nil))

	p := Digest([]task.Notification{
		notification("OPS-001", 0, task.DueToday),
		notification("OPS-002", 2, task.DueThisWeek),
	})
	require.NotNil(t, p)
	assert.Equal(t, "1 task(s) due today, 1 this week", p.Title)
	assert.Equal(t, "OPS-001 desc OPS-001 (Due Today)\nOPS-002 desc OPS-002 (Due in 2 days)", p.Body)

	var many []task.Notification
	for i := range 7 {
		many = append(many, notification(fmt.Sprintf("OPS-%03d", i+1), 3, task.DueThisWeek))
	}
	p = Digest(many)
	assert.Equal(t, "7 task(s) due this week", p.Title)
	lines := strings.Split(p.Body, "\n")
	require.Len(t, lines, maxDigestLines+1)
	assert.Equal(t, "and 2 more", lines[maxDigestLines])
}

type staticSource struct {
	ns  []task.Notification
	err error
}

func (s staticSource) Notifications(context.Context) ([]task.Notification, error) {
	return s.ns, s.err
}

type recordingPusher struct {
	payloads []*NotificationPayload
}

func (p *recordingPusher) SendToAll(_ context.Context, payload *NotificationPayload) int {
	p.payloads = append(p.payloads, payload)
	return 3
}

func TestDispatcher_Dispatch(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		source   staticSource
		wantSent int
		wantPush int
	}{
		{
			name:     "due tasks",
			source:   staticSource{ns: []task.Notification{notification("OPS-001", 0, task.DueToday)}},
			wantSent: 3,
			wantPush: 1,
		},
		{
			name:   "nothing due",
			source: staticSource{},
		},
		{
			name:   "source error",
			source: staticSource{err: errors.New("boom")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pusher := &recordingPusher{}
			d := NewDispatcher(tt.source, pusher, time.Hour)
			assert.Equal(t, tt.wantSent, d.Dispatch(ctx))
			assert.Len(t, pusher.payloads, tt.wantPush)
		})
	}
}

func TestDispatcher_StartStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pusher := &recordingPusher{}
	d := NewDispatcher(staticSource{}, pusher, time.Millisecond)

	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

type panickingSource struct {
	calls atomic.Int32
}

func (s *panickingSource) Notifications(context.Context) ([]task.Notification, error) {
	s.calls.Add(1)
	panic("store exploded")
}

func TestDispatcher_SurvivesPanickingTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := &panickingSource{}
	d := NewDispatcher(source, &recordingPusher{}, time.Millisecond)

	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return source.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	<-done
}

func newTestServer(t *testing.T, env *config.VAPIDEnv) (*httptest.Server, *repositoryimpl.YAMLRepository) {
	t.Helper()
	repo := newRepo(t)
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(cerr.NewConvertConnectErrorChiMiddleware())
		NewServer(env, repo, NewSender(env, repo)).Routes(r)
	})
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, repo
}

func do(t *testing.T, ts *httptest.Server, method, path, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	res, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func TestServer_Subscriptions(t *testing.T) {
	env := newVAPIDEnv(t)
	ts, repo := newTestServer(t, env)
	ctx := context.Background()

	var key vapidPublicKeyResponse
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/api/push-subscriptions/vapid-public-key", "", &key))
	assert.Equal(t, env.VAPIDPublicKey, key.PublicKey)

	body := `{"endpoint":"https://push.example/a","p256dh_key":"k","auth_key":"a"}`
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/api/push-subscriptions", body, nil))
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/api/push-subscriptions", body, nil))
	subs, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	require.Equal(t, http.StatusBadRequest, do(t, ts, http.MethodPost, "/api/push-subscriptions", `{"endpoint":"x"}`, nil))

	require.Equal(t, http.StatusOK, do(t, ts, http.MethodDelete, "/api/push-subscriptions", `{"endpoint":"https://push.example/a"}`, nil))
	require.Equal(t, http.StatusNotFound, do(t, ts, http.MethodDelete, "/api/push-subscriptions", `{"endpoint":"https://push.example/a"}`, nil))
}

func TestServer_VAPIDNotConfigured(t *testing.T) {
	ts, _ := newTestServer(t, &config.VAPIDEnv{})
	require.Equal(t, http.StatusPreconditionFailed, do(t, ts, http.MethodGet, "/api/push-subscriptions/vapid-public-key", "", nil))
	require.Equal(t, http.StatusPreconditionFailed, do(t, ts, http.MethodPost, "/api/push-subscriptions/test", "", nil))
}
