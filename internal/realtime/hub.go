// Package realtime はWebSocketによるイベント配信を提供する。
// 仕分けの確定・ステージ遷移・スキャン完了などのイベントを
// 接続中の全クライアントへブロードキャストする。
package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Hub は接続中のWebSocketクライアントを管理し、メッセージを配信する。
// クライアント集合へのアクセスはすべてRunのゴルーチンに閉じているため、
// ロックは不要。
type Hub struct {
	logger *slog.Logger

	clients     map[*Client]bool
	clientCount atomic.Int32
	broadcast   chan []byte
	register    chan *Client
	unregister  chan *Client
}

// NewHub は新しいHubを生成する。
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run はハブのメッセージ処理ループを開始する。
// コンテキストがキャンセルされると全クライアントを切断して終了する。
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocketハブを開始しました")

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.clientCount.Store(0)
			h.logger.Info("WebSocketハブを停止しました")
			return

		case client := <-h.register:
			h.clients[client] = true
			h.clientCount.Store(int32(len(h.clients)))
			h.logger.Info("WebSocketクライアントが接続しました",
				slog.Int("client_count", len(h.clients)),
			)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.clientCount.Store(int32(len(h.clients)))
				h.logger.Info("WebSocketクライアントが切断しました",
					slog.Int("client_count", len(h.clients)),
				)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// 送信バッファが詰まったクライアントは切断する
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.clientCount.Store(int32(len(h.clients)))
		}
	}
}

// ClientCount は接続中のクライアント数を返す。
func (h *Hub) ClientCount() int {
	return int(h.clientCount.Load())
}

// Broadcast はメッセージを接続中の全クライアントへ配信する。
// ハブのバッファが満杯の場合はメッセージを破棄する（配信は通知目的であり、
// 取りこぼしてもAPI応答で状態は取得できる）。
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("配信バッファが満杯のためメッセージを破棄しました")
	}
}

// upgrader はHTTP接続をWebSocketへアップグレードする。
// クライアントはネイティブアプリでOriginヘッダーを送らないため、
// Originチェックは行わない（認証はトークンミドルウェアが担う）。
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS はHTTP接続をWebSocketへアップグレードし、クライアントを登録する。
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocketアップグレードに失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 64),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}
