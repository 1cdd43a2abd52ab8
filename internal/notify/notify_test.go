package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscord(srv.URL, nil).Send(context.Background(), "**Action**: Hold A"))
	assert.Equal(t, map[string]string{"content": "**Action**: Hold A"}, got)
}

func TestDiscordSend_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "Cannot send an empty message"}`))
	}))
	defer srv.Close()

	err := NewDiscord(srv.URL, srv.Client()).Send(context.Background(), "")
	assert.EqualError(t, err, `discord webhook error 400: {"message": "Cannot send an empty message"}`)

	assert.ErrorContains(t, NewDiscord("", nil).Send(context.Background(), "x"), "webhook url not set")
}

type recordSender struct {
	got []string
	err error
}

func (r *recordSender) Send(_ context.Context, text string) error {
	r.got = append(r.got, text)
	return r.err
}

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recordSender{}, &recordSender{err: boom}
	err := Multi{a, b}.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"hi"}, a.got)
	assert.Equal(t, []string{"hi"}, b.got)

	assert.NoError(t, Multi{}.Send(context.Background(), "hi"))
}
