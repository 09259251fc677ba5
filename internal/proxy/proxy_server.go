package proxy

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BetterCallFirewall/pscan/internal/config"
	"github.com/BetterCallFirewall/pscan/internal/models"
)

// maxCapturedBody тело ответа больше этого размера в анализ не попадает (клиенту уходит целиком)
const maxCapturedBody = 1 << 20

var hopByHopHeaders = []string{
	"Connection", "Proxy-Connection", "Proxy-Authenticate", "Proxy-Authorization",
	"Keep-Alive", "Te", "Trailers", "Transfer-Encoding", "Upgrade",
}

// TrafficAnalyzer получает каждый завершенный обмен. Не должен блокировать прокси.
type TrafficAnalyzer interface {
	AnalyzeHTTPTraffic(msg *models.HTTPMessage)
}

// CertProvider выдает сертификаты для MITM CONNECT
type CertProvider interface {
	GetCertificate(host string) (*tls.Certificate, error)
}

type Options struct {
	// Transport к upstream, по умолчанию клон http.DefaultTransport
	Transport http.RoundTripper
}

type Server struct {
	config   config.ProxyConfig
	analyzer TrafficAnalyzer
	certs    CertProvider
	client   *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
	server   *http.Server
}

func NewServer(
	cfg config.ProxyConfig,
	analyzer TrafficAnalyzer,
	certs CertProvider,
	logger *zap.Logger,
	opts Options,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	s := &Server{
		config:   cfg,
		analyzer: analyzer,
		certs:    certs,
		logger:   logger,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse // Не следуем за редиректами автоматически
			},
		},
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s
}

// Handler возвращает http.Handler прокси (используется в Start и тестах)
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleRequest)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
	}

	s.logger.Info("🚀 Proxy listening", zap.String("addr", s.config.ListenAddr))
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	// Обрабатываем CONNECT для HTTPS
	if r.Method == http.MethodConnect {
		s.handleConnect(w, r)
		return
	}

	// Получаем полный URL из запроса
	targetURL := r.URL.String()

	// Если URL не абсолютный, формируем его из Host
	if !r.URL.IsAbs() {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		targetURL = scheme + "://" + r.Host + r.RequestURI
	}

	resp, msg, err := s.roundTrip(r, targetURL)
	if err != nil {
		s.logger.Warn("Upstream request failed", zap.String("url", targetURL), zap.Error(err))
		http.Error(w, "Proxy error: "+err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	s.analyzer.AnalyzeHTTPTraffic(msg)

	// Возвращаем ответ клиенту
	for name, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Debug("Copy response to client failed", zap.String("url", targetURL), zap.Error(err))
	}
}

// roundTrip пересылает запрос к целевому серверу и захватывает обмен.
// Тело ответа вычитывается и подменяется, так что resp.Body можно отдать клиенту.
func (s *Server) roundTrip(r *http.Request, targetURL string) (*http.Response, *models.HTTPMessage, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read request body: %w", err)
	}

	outReq, err := createProxyRequest(r, targetURL, body)
	if err != nil {
		return nil, nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(r.Context()); err != nil {
			return nil, nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	resp, err := s.client.Do(outReq)
	if err != nil {
		return nil, nil, err
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))
	resp.ContentLength = int64(len(respBody))
	resp.TransferEncoding = nil
	resp.Header.Del("Content-Length")

	captured := respBody
	if len(captured) > maxCapturedBody {
		captured = captured[:maxCapturedBody]
	}

	msg := models.NewHTTPMessage(
		models.RequestHeader{
			Method:  r.Method,
			URL:     targetURL,
			Headers: r.Header.Clone(),
			Body:    string(body),
		},
		models.FromHTTPResponse(resp, captured),
	)

	removeHopByHop(resp.Header)

	s.logger.Debug("🌐 Exchange captured",
		zap.String("method", r.Method),
		zap.String("url", targetURL),
		zap.Int("status", resp.StatusCode))

	return resp, msg, nil
}

// createProxyRequest создает запрос к upstream без hop-by-hop заголовков
func createProxyRequest(inReq *http.Request, targetURL string, body []byte) (*http.Request, error) {
	outReq, err := http.NewRequestWithContext(inReq.Context(), inReq.Method, targetURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create upstream request: %w", err)
	}

	outReq.Header = inReq.Header.Clone()
	removeHopByHop(outReq.Header)
	outReq.Host = inReq.Host

	return outReq, nil
}

// removeHopByHop удаляет hop-by-hop заголовки, включая перечисленные в Connection
func removeHopByHop(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if s.certs == nil {
		http.Error(w, "HTTPS interception disabled", http.StatusNotImplemented)
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "Hijacking not supported", http.StatusInternalServerError)
		return
	}

	clientConn, _, err := hijacker.Hijack()
	if err != nil {
		http.Error(w, "Cannot hijack connection", http.StatusInternalServerError)
		return
	}
	defer clientConn.Close()

	// Сообщаем клиенту что туннель установлен
	if _, err := clientConn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		return
	}

	// Извлекаем хост без порта
	host, _, _ := net.SplitHostPort(r.Host)
	if host == "" {
		host = r.Host
	}

	certificate, err := s.certs.GetCertificate(host)
	if err != nil {
		s.logger.Warn("Certificate generation failed", zap.String("host", host), zap.Error(err))
		return
	}

	tlsClientConn := tls.Server(clientConn, &tls.Config{
		Certificates: []tls.Certificate{*certificate},
	})
	defer tlsClientConn.Close()

	if err := tlsClientConn.Handshake(); err != nil {
		s.logger.Debug("TLS handshake with client failed", zap.String("host", host), zap.Error(err))
		return
	}

	// Несколько запросов могут идти по одному соединению
	reader := bufio.NewReader(tlsClientConn)
	for {
		req, err := http.ReadRequest(reader)
		if err != nil {
			return
		}

		targetURL := "https://" + r.Host + req.URL.RequestURI()
		if !s.handleHTTPSRequest(tlsClientConn, req, targetURL) {
			return
		}

		if req.Close || strings.EqualFold(req.Header.Get("Connection"), "close") {
			return
		}
	}
}

func (s *Server) handleHTTPSRequest(clientConn net.Conn, req *http.Request, targetURL string) bool {
	resp, msg, err := s.roundTrip(req, targetURL)
	if err != nil {
		s.logger.Warn("Upstream request failed", zap.String("url", targetURL), zap.Error(err))
		if _, err := clientConn.Write([]byte("HTTP/1.1 502 Bad Gateway\r\nContent-Length: 0\r\nConnection: close\r\n\r\n")); err != nil {
			s.logger.Debug("Write 502 to client failed", zap.String("url", targetURL), zap.Error(err))
		}
		return false
	}
	defer resp.Body.Close()

	s.analyzer.AnalyzeHTTPTraffic(msg)

	if err := resp.Write(clientConn); err != nil {
		s.logger.Debug("Write response to client failed", zap.String("url", targetURL), zap.Error(err))
		return false
	}
	return true
}
