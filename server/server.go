// Package server exposes the answer pipeline over a websocket and a JSON
// HTTP endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xhad/agrisaathi/internal/models"
	"github.com/xhad/agrisaathi/internal/types"
	"github.com/xhad/agrisaathi/pkg/auxiliary"
	"github.com/xhad/agrisaathi/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the web client is served from a different origin
	},
}

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// QueryRequest is the POST /query body. Over the websocket the query text
// travels in Message.Content and the rest in Message.Data.
type QueryRequest struct {
	Query    string `json:"query"`
	Language string `json:"language"`
	Pincode  string `json:"pincode"`
	District string `json:"district,omitempty"`
	State    string `json:"state,omitempty"`
	Chunked  bool   `json:"chunked,omitempty"`
}

type QueryResponse struct {
	models.AnswerResult
	Location models.Location `json:"location"`
	Weather  json.RawMessage `json:"weather,omitempty"`
	Market   json.RawMessage `json:"market,omitempty"`
}

// Answerer is the pipeline as seen by the server.
type Answerer interface {
	GetAnswer(ctx context.Context, q models.Query) models.AnswerResult
	GetAnswerChunked(ctx context.Context, q models.Query, chunkSize int) models.AnswerResult
}

type Config struct {
	Pipeline       Answerer
	Resolver       types.LocationResolver
	Weather        types.WeatherSource
	Market         types.MarketSource
	ChunkSize      int
	RequestTimeout time.Duration
	Logger         logger.Logger
}

type WSServer struct {
	config Config
	log    logger.Logger
}

// requestError carries the HTTP status a failed request maps to.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func NewWSServer(config Config) (*WSServer, error) {
	if config.Pipeline == nil {
		return nil, errors.New("server requires a pipeline")
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 60 * time.Second
	}
	return &WSServer{config: config, log: logger.Or(config.Logger)}, nil
}

// Handler routes /ws, /query and /health.
func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/query", s.handleQueryHTTP)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

func (s *WSServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("starting server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Answer resolves the location, gathers weather and market data and runs
// the pipeline. Only location lookup failures are returned as errors;
// weather and market failures are logged and the answer proceeds without
// them.
func (s *WSServer) Answer(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, &requestError{http.StatusBadRequest, "query is required"}
	}
	if req.Language == "" {
		req.Language = "english"
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	location, err := s.location(ctx, req)
	if err != nil {
		return nil, err
	}

	var weather, market json.RawMessage
	if s.config.Weather != nil && req.Pincode != "" {
		if weather, err = s.config.Weather.Weather(ctx, req.Pincode); err != nil {
			s.log.Warn("weather fetch failed", "pincode", req.Pincode, "err", err)
			weather = nil
		}
	}
	if s.config.Market != nil {
		if market, err = s.config.Market.Market(ctx, location); err != nil {
			s.log.Warn("market fetch failed", "state", location.State, "err", err)
			market = nil
		}
	}

	q := models.Query{
		Text:     req.Query,
		Language: req.Language,
		Pincode:  req.Pincode,
		Location: location,
		Weather:  weather,
		Market:   market,
	}

	var result models.AnswerResult
	if req.Chunked {
		result = s.config.Pipeline.GetAnswerChunked(ctx, q, s.config.ChunkSize)
	} else {
		result = s.config.Pipeline.GetAnswer(ctx, q)
	}

	return &QueryResponse{AnswerResult: result, Location: location, Weather: weather, Market: market}, nil
}

func (s *WSServer) location(ctx context.Context, req QueryRequest) (models.Location, error) {
	if req.District != "" || req.State != "" || req.Pincode == "" || s.config.Resolver == nil {
		return models.Location{District: req.District, State: req.State}, nil
	}

	loc, err := s.config.Resolver.Resolve(ctx, req.Pincode)
	switch {
	case err == nil:
		return loc, nil
	case errors.Is(err, auxiliary.ErrInvalidPincode), errors.Is(err, auxiliary.ErrLocationNotFound):
		return models.Location{}, &requestError{http.StatusBadRequest, err.Error()}
	default:
		s.log.Error("location lookup failed", "pincode", req.Pincode, "err", err)
		return models.Location{}, &requestError{http.StatusInternalServerError, "Location service failed"}
	}
}

func (s *WSServer) handleQueryHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "method not allowed"})
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid request body"})
		return
	}

	resp, err := s.Answer(r.Context(), req)
	if err != nil {
		writeJSON(w, statusOf(err), map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusOf(err error) int {
	var re *requestError
	if errors.As(err, &re) {
		return re.status
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// conn serializes writes; gorilla connections allow one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "err", err)
		return
	}
	defer ws.Close()

	c := &conn{ws: ws}
	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("error reading message", "err", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendMessage(c, "error", "invalid message", nil)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(ctx, c, msg, message)
		}()
	}
}

func (s *WSServer) handleMessage(ctx context.Context, c *conn, msg Message, raw []byte) {
	switch msg.Type {
	case "ping":
		s.sendMessage(c, "pong", "", nil)
		return
	case "query", "":
	default:
		s.sendMessage(c, "error", "unknown message type: "+msg.Type, nil)
		return
	}

	var envelope struct {
		Data QueryRequest `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		s.sendMessage(c, "error", "invalid query data", nil)
		return
	}
	req := envelope.Data
	req.Query = msg.Content

	s.sendMessage(c, "status", "Processing query", nil)
	resp, err := s.Answer(ctx, req)
	if err != nil {
		s.sendMessage(c, "error", err.Error(), nil)
		return
	}
	s.sendMessage(c, "response", resp.Text, resp)
}

func (s *WSServer) sendMessage(c *conn, msgType, content string, data any) {
	if err := c.send(Message{Type: msgType, Content: content, Data: data}); err != nil {
		s.log.Warn("error sending message", "err", err)
	}
}
