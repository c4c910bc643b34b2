package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lingoarena/lingoarena-backend/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubServer join_queue에 고정된 match_found로 응답하는 서버
func stubServer(t *testing.T) string {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var msg map[string]interface{}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg["type"] != "join_queue" {
				continue
			}
			_ = conn.WriteJSON(map[string]interface{}{
				"type": "queue_joined", "language": "spanish", "difficulty": "hard",
			})
			_ = conn.WriteJSON(client.MatchFound{
				Type:        "match_found",
				MatchID:     "m-1",
				Opponent:    client.Opponent{Username: "Lingo Bot", Elo: 1200},
				Language:    "spanish",
				Difficulty:  client.DifficultyHard,
				IsAI:        true,
				StartsFirst: true,
			})
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestExportedWireTypes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	c, err := client.Connect(ctx, stubServer(t), client.Options{})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.JoinQueue(client.JoinRequest{
		PlayerID:   "p1",
		Username:   "ana",
		Language:   "Spanish",
		Difficulty: client.DifficultyHard,
	}))

	var mf client.MatchFound
	select {
	case mf = <-c.MatchFound():
	case <-ctx.Done():
		t.Fatal("no match_found")
	}
	assert.Equal(t, "m-1", mf.MatchID)
	assert.Equal(t, client.DifficultyHard, mf.Difficulty)
	assert.Equal(t, "Lingo Bot", mf.Opponent.Username)
	assert.True(t, mf.StartsFirst)
	assert.Equal(t, client.StateMatched, c.State())

	var errs <-chan client.ServerError = c.Errors()
	assert.NotNil(t, errs)
}
