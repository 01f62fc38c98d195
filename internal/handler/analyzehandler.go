package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpx"

	"quant-api/internal/errorx"
	"quant-api/internal/logic"
	"quant-api/internal/svc"
	"quant-api/internal/types"
	"quant-api/pkg/stream"
)

const (
	ndjsonContentType = "application/x-ndjson"
	wsWriteWait       = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// AnalyzeHandler streams the pipeline events as newline-delimited JSON.
func AnalyzeHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.AnalyzeRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, errorx.BadRequest(err.Error()))
			return
		}

		l := logic.NewAnalyzeLogic(r.Context(), svcCtx)
		in, err := l.Prepare(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		w.Header().Set("Content-Type", ndjsonContentType)
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		enc := stream.NewEncoder(w)
		if err := l.Stream(in, enc.Encode); err != nil {
			logx.WithContext(r.Context()).Infof("handler: analyze ended early symbol=%s err=%v", in.Symbol, err)
		}
	}
}

// AnalyzeWSHandler streams the pipeline events over a WebSocket, one text
// message per event. Closing the socket cancels the run.
func AnalyzeWSHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.AnalyzeRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, errorx.BadRequest(err.Error()))
			return
		}

		l := logic.NewAnalyzeLogic(r.Context(), svcCtx)
		in, err := l.Prepare(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.WithContext(r.Context()).Errorf("handler: websocket upgrade err=%v", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		l = logic.NewAnalyzeLogic(ctx, svcCtx)
		emit := func(ev stream.Event) error {
			data, err := stream.Marshal(ev)
			if err != nil {
				return err
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			return conn.WriteMessage(websocket.TextMessage, data)
		}
		if err := l.Stream(in, emit); err != nil {
			logx.WithContext(r.Context()).Infof("handler: analyze ws ended early symbol=%s err=%v", in.Symbol, err)
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "analysis complete"))
	}
}
