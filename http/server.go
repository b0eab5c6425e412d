package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fwojciec/sitezip"
	"github.com/fwojciec/sitezip/crawl"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ShutdownTimeout is the time given for outstanding requests to finish
// before shutdown.
const ShutdownTimeout = 5 * time.Second

// IdentityHeader carries the signed-in user's email, set by the session
// layer in front of the server. Requests without it are keyed by client IP.
const IdentityHeader = "X-User-Email"

// Response metadata headers.
const (
	RunIDHeader      = "X-Run-ID"
	AssetCountHeader = "X-Asset-Count"
	LogCountHeader   = "X-Log-Count"
)

// StatusClientClosedRequest reports a run canceled by its client.
const StatusClientClosedRequest = 499

// Server serves archive downloads over HTTP.
type Server struct {
	ln     net.Listener
	server *http.Server
	router chi.Router

	// Addr is the bind address for the TCP listener.
	Addr string

	Crawler *crawl.Crawler
	Quota   sitezip.QuotaService

	// NewArchive wraps the response body in an archive format.
	NewArchive func(io.Writer) sitezip.ArchiveWriter

	Logger *slog.Logger
}

// NewServer returns a new instance of Server.
func NewServer() *Server {
	s := &Server{
		server: &http.Server{},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/api/download", s.handleDownload)
	r.Get("/api/rate-limit", s.handleRateLimit)

	s.router = r
	s.server.Handler = r
	return s
}

// ServeHTTP routes requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Open begins listening on the bind address.
func (s *Server) Open() (err error) {
	if s.ln, err = net.Listen("tcp", s.Addr); err != nil {
		return err
	}
	go func() {
		if err := s.server.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error("serve", "error", err)
		}
	}()
	return nil
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// URL returns the local base URL of the running server.
func (s *Server) URL() string {
	if s.ln == nil {
		return ""
	}
	return "http://" + s.ln.Addr().String()
}

// downloadRequest is the JSON body of POST /api/download.
type downloadRequest struct {
	URLs           []string `json:"urls"`
	URL            string   `json:"url"`
	Option         string   `json:"option"`
	DownloadLinked bool     `json:"downloadLinked"`
	CustomHeader   string   `json:"customHeader"`
	Filename       string   `json:"filename"`
}

// crawlRequest converts the wire request. A single "url" is accepted when
// "urls" is empty, and "downloadLinked" selects full recursion.
func (d *downloadRequest) crawlRequest() (*sitezip.CrawlRequest, error) {
	urls := d.URLs
	if len(urls) == 0 && d.URL != "" {
		urls = []string{d.URL}
	}

	mode, err := sitezip.ParseCrawlMode(d.Option)
	if err != nil {
		return nil, err
	}
	if d.DownloadLinked {
		mode = sitezip.ModeFull
	}

	header, err := sitezip.ParseHeader(d.CustomHeader)
	if err != nil {
		return nil, err
	}

	req := &sitezip.CrawlRequest{
		URLs:     urls,
		Mode:     mode,
		Header:   header,
		Filename: sitezip.SanitizeFilename(d.Filename),
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var body downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.Error(w, r, sitezip.Errorf(sitezip.EINVALID, "Invalid JSON body."))
		return
	}
	req, err := body.crawlRequest()
	if err != nil {
		s.Error(w, r, err)
		return
	}

	quota, err := s.Quota.Consume(r.Context(), identity(r))
	setQuotaHeaders(w, quota)
	if err != nil {
		s.Error(w, r, err)
		return
	}

	stream := s.Crawler.Stream(r.Context(), req, s.NewArchive)
	defer stream.Close()

	h := w.Header()
	h.Set("Content-Type", "application/zip")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": req.Filename}))
	h.Set(RunIDHeader, stream.ID)
	h.Set("Trailer", AssetCountHeader+", "+LogCountHeader)

	cw := newFlushWriter(w)
	_, copyErr := io.Copy(cw, stream)
	if cw.err != nil {
		// Nobody reads the pipe any more; stop the run before waiting on it.
		_ = stream.Close()
	}
	result, err := stream.Result()
	if cw.err != nil {
		err = cw.err
	} else if err == nil {
		err = copyErr
	}
	if err != nil {
		if cw.n == 0 {
			h.Del("Content-Disposition")
			h.Del("Trailer")
			s.Error(w, r, err)
			return
		}
		// Headers are gone; abort so the client sees a broken transfer
		// rather than a truncated archive ending cleanly.
		s.Logger.Error("download aborted mid-stream", "run", stream.ID, "bytes", cw.n, "error", err)
		panic(http.ErrAbortHandler)
	}

	h.Set(AssetCountHeader, strconv.Itoa(result.Resources))
	h.Set(LogCountHeader, strconv.Itoa(len(result.Log)))
}

func (s *Server) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	quota, err := s.Quota.Remaining(r.Context(), identity(r))
	if err != nil {
		s.Error(w, r, err)
		return
	}
	setQuotaHeaders(w, quota)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(quota)
}

// identity returns the quota key of the request.
func identity(r *http.Request) string {
	if email := r.Header.Get(IdentityHeader); email != "" {
		return email
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func setQuotaHeaders(w http.ResponseWriter, q sitezip.Quota) {
	if q.Limit == 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(q.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
}

// flushWriter flushes every write to the client and counts bytes written.
type flushWriter struct {
	w   http.ResponseWriter
	rc  *http.ResponseController
	n   int64
	err error // first failed write to the client
}

func newFlushWriter(w http.ResponseWriter) *flushWriter {
	return &flushWriter{w: w, rc: http.NewResponseController(w)}
}

func (f *flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	f.n += int64(n)
	if err != nil {
		f.err = err
		return n, err
	}
	if err := f.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		f.err = err
		return n, err
	}
	return n, nil
}

// ErrorResponse represents a JSON structure for error output.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Error writes err as JSON with a status matching its application code.
// Internal errors are logged and reported without detail.
func (s *Server) Error(w http.ResponseWriter, r *http.Request, err error) {
	code, message := sitezip.ErrorCode(err), sitezip.ErrorMessage(err)
	if code == sitezip.EINTERNAL {
		s.Logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ErrorStatusCode(code))
	_ = json.NewEncoder(w).Encode(&ErrorResponse{Error: message})
}

// codes maps application error codes to HTTP status codes.
var codes = map[string]int{
	sitezip.ECANCELED:  StatusClientClosedRequest,
	sitezip.ECONFLICT:  http.StatusConflict,
	sitezip.EINVALID:   http.StatusBadRequest,
	sitezip.ERATELIMIT: http.StatusTooManyRequests,
	sitezip.EINTERNAL:  http.StatusInternalServerError,
}

// ErrorStatusCode returns the HTTP status code for an application error code.
func ErrorStatusCode(code string) int {
	if v, ok := codes[code]; ok {
		return v
	}
	return http.StatusInternalServerError
}
