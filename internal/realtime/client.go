package realtime

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait は1回の書き込みに許容する時間。
	writeWait = 10 * time.Second
	// pongWait はPong応答を待つ時間。超過した接続は切断される。
	pongWait = 60 * time.Second
	// pingPeriod はPing送信の間隔。pongWaitより短くなければならない。
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize はクライアントから受け付けるメッセージの上限バイト数。
	maxMessageSize = 512
)

// Client はハブと1本のWebSocket接続の仲介を行う。
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump はクライアントからの受信を処理する。
// 配信は一方向であり、受信データは読み捨てる。Pong処理と切断検知のために
// 読み取りループ自体は必要になる。
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Warn("WebSocket読み取りでエラーが発生しました",
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// writePump はハブからのメッセージをクライアントへ送信する。
// 定期的なPing送信もこのゴルーチンで行う。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// ハブがチャネルを閉じた
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// 滞留しているメッセージを同じフレームにまとめて送る
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
