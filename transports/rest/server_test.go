package rest

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"echo/conversation"
	"echo/core"
	"echo/transports"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 5, 8, 9, 0, 0, 0, time.UTC)

type fakeConversations struct {
	userID string
	audio  core.AudioInput
	err    error
}

func (f *fakeConversations) Start(_ context.Context, userID string) (conversation.StartResult, error) {
	f.userID = userID
	if f.err != nil {
		return conversation.StartResult{}, f.err
	}
	return conversation.StartResult{Message: "안녕하세요", Audio: []byte("mp3"), Timestamp: at}, nil
}

func (f *fakeConversations) Message(_ context.Context, userID string, in core.AudioInput) (conversation.MessageResult, error) {
	f.userID = userID
	f.audio = in
	if f.err != nil {
		return conversation.MessageResult{}, f.err
	}
	return conversation.MessageResult{UserMessage: "잘 잤어요", AIResponse: "다행이에요", Audio: []byte("mp3"), Timestamp: at}, nil
}

func (f *fakeConversations) End(_ context.Context, userID string) (conversation.EndResult, error) {
	f.userID = userID
	if f.err != nil {
		return conversation.EndResult{}, f.err
	}
	return conversation.EndResult{EndedAt: at}, nil
}

func newTestServer(conv transports.Conversations) *Server {
	return NewServer(conv, Options{
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("# metrics")) }),
		Logger:  core.NopLogger(),
	})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func multipartBody(t *testing.T, field, mimeType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="clip.webm"`)
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	part.Write(data)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestStart(t *testing.T) {
	conv := &fakeConversations{}
	srv := newTestServer(conv)

	req := httptest.NewRequest(http.MethodPost, "/conversations/start", nil)
	req.Header.Set(transports.UserIDHeader, "42")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", conv.userID)
	body := decode(t, rec)
	assert.Equal(t, "안녕하세요", body["message"])
	assert.Equal(t, "bXAz", body["audioData"])
	assert.Equal(t, "2026-05-08T09:00:00Z", body["timestamp"])
}

func TestStartDefaultsUser(t *testing.T) {
	conv := &fakeConversations{}
	rec := httptest.NewRecorder()
	newTestServer(conv).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/conversations/start", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, transports.DefaultUserID, conv.userID)
}

func TestMessage(t *testing.T) {
	conv := &fakeConversations{}
	body, contentType := multipartBody(t, "audio", "audio/webm", []byte("opus-bytes"))

	req := httptest.NewRequest(http.MethodPost, "/conversations/message", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	newTestServer(conv).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []byte("opus-bytes"), conv.audio.Data)
	assert.Equal(t, "audio/webm", conv.audio.MimeType)
	assert.Equal(t, "clip.webm", conv.audio.FileName)

	out := decode(t, rec)
	assert.Equal(t, "잘 잤어요", out["userMessage"])
	assert.Equal(t, "다행이에요", out["aiResponse"])
	assert.Equal(t, "bXAz", out["audioData"])
}

func TestMessageRejectsMissingAudio(t *testing.T) {
	conv := &fakeConversations{}
	body, contentType := multipartBody(t, "file", "audio/webm", []byte("x"))

	req := httptest.NewRequest(http.MethodPost, "/conversations/message", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	newTestServer(conv).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decode(t, rec)["error"])
	assert.Empty(t, conv.userID)
}

func TestMessageRejectsNonMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/conversations/message", bytes.NewBufferString(`{"audio":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	newTestServer(&fakeConversations{}).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessageRejectsOversizedBody(t *testing.T) {
	srv := NewServer(&fakeConversations{}, Options{MaxUploadBytes: 16, Logger: core.NopLogger()})
	body, contentType := multipartBody(t, "audio", "audio/wav", bytes.Repeat([]byte{1}, formSlack+64))

	req := httptest.NewRequest(http.MethodPost, "/conversations/message", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"not found", core.NotFoundError("1"), http.StatusNotFound, "not_found"},
		{"upstream", core.NewProcessingError(core.PhaseModel, errors.New("timeout")), http.StatusBadGateway, "upstream"},
		{"config", core.ConfigurationMissingError("SYSTEM"), http.StatusInternalServerError, "configuration_missing"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newTestServer(&fakeConversations{err: tc.err}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/conversations/end", nil))
			assert.Equal(t, tc.status, rec.Code)
			out := decode(t, rec)
			assert.Equal(t, tc.kind, out["error"])
			assert.NotEmpty(t, out["message"])
		})
	}
}

func TestEnd(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeConversations{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/conversations/end", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-05-08T09:00:00Z", decode(t, rec)["endedAt"])
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(&fakeConversations{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "# metrics", rec.Body.String())

	unready := NewServer(&fakeConversations{}, Options{Ready: func() error { return errors.New("db closed") }, Logger: core.NopLogger()})
	rec = httptest.NewRecorder()
	unready.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWrongMethod(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeConversations{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/start", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
