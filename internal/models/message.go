package models

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HTTPMessage перехваченный обмен запрос/ответ, который видят пассивные правила.
// Правила только читают сообщение.
type HTTPMessage struct {
	ID        string          `json:"id" jsonschema:"description=Unique message ID"`
	Request   RequestHeader   `json:"request"`
	Response  *ResponseHeader `json:"response,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// RequestHeader данные запроса
type RequestHeader struct {
	Method  string      `json:"method"`
	URL     string      `json:"url"`
	Headers http.Header `json:"headers"`
	Body    string      `json:"body,omitempty"`
}

// ResponseHeader данные ответа. Status == 0 означает, что код не удалось определить.
type ResponseHeader struct {
	Status  int         `json:"status"`
	Reason  string      `json:"reason,omitempty"`
	Proto   string      `json:"proto,omitempty"`
	Headers http.Header `json:"headers"`
	Body    string      `json:"body,omitempty"`
}

// NewHTTPMessage создает сообщение с новым ID
func NewHTTPMessage(req RequestHeader, resp *ResponseHeader) *HTTPMessage {
	return &HTTPMessage{
		ID:        uuid.New().String(),
		Request:   req,
		Response:  resp,
		Timestamp: time.Now(),
	}
}

// StatusCode returns the response status code and whether it was resolved.
func (r *ResponseHeader) StatusCode() (int, bool) {
	if r == nil || r.Status < 100 || r.Status > 999 {
		return 0, false
	}
	return r.Status, true
}

// ContentType returns the media type of the response without parameters.
func (r *ResponseHeader) ContentType() string {
	if r == nil {
		return ""
	}
	ct := r.Headers.Get("Content-Type")
	if idx := strings.Index(ct, ";"); idx != -1 {
		ct = ct[:idx]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

var (
	// ErrMalformedStatus строка статуса не разобрана, Status остается 0
	ErrMalformedStatus = errors.New("malformed status line")
	// ErrMalformedHeader одна или несколько строк заголовков пропущены
	ErrMalformedHeader = errors.New("malformed header line")
)

// ParseStatusLine разбирает строку вида "HTTP/1.1 415 Unsupported Media Type".
func ParseStatusLine(line string) (proto string, code int, reason string, err error) {
	line = strings.TrimRight(line, "\r\n")
	proto, rest, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(proto, "HTTP/") {
		return "", 0, "", fmt.Errorf("%w: %q", ErrMalformedStatus, line)
	}

	codeStr, reason, _ := strings.Cut(strings.TrimLeft(rest, " "), " ")
	if len(codeStr) != 3 {
		return "", 0, "", fmt.Errorf("%w: bad code in %q", ErrMalformedStatus, line)
	}
	code, err = strconv.Atoi(codeStr)
	if err != nil || code < 100 {
		return "", 0, "", fmt.Errorf("%w: bad code in %q", ErrMalformedStatus, line)
	}

	return proto, code, reason, nil
}

// ParseResponse читает "сырой" HTTP ответ (строка статуса, заголовки, тело).
// Разбор нестрогий: нераспознанная строка статуса дает Status == 0, битые строки
// заголовков пропускаются. Такие проблемы возвращаются как ошибка, обернутая в
// ErrMalformedStatus / ErrMalformedHeader, вместе с разобранным ответом.
// Остальные ошибки означают, что ответ прочитать не удалось.
func ParseResponse(r io.Reader) (*ResponseHeader, error) {
	tp := textproto.NewReader(bufio.NewReader(r))
	resp := &ResponseHeader{Headers: http.Header{}}

	line, err := tp.ReadLine()
	if err != nil {
		return resp, fmt.Errorf("%w: read status line: %v", ErrMalformedStatus, err)
	}

	var problems []error
	proto, code, reason, err := ParseStatusLine(line)
	if err != nil {
		problems = append(problems, err)
	} else {
		resp.Proto, resp.Status, resp.Reason = proto, code, reason
	}

	var lastKey string
	for {
		line, err := tp.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return resp, fmt.Errorf("read headers: %w", err)
		}
		if line == "" {
			break
		}

		// obs-fold: продолжение предыдущего заголовка
		if (line[0] == ' ' || line[0] == '\t') && lastKey != "" {
			values := resp.Headers[lastKey]
			values[len(values)-1] += " " + strings.TrimSpace(line)
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" || strings.ContainsAny(key, " \t") {
			problems = append(problems, fmt.Errorf("%w: %q", ErrMalformedHeader, line))
			lastKey = ""
			continue
		}
		lastKey = textproto.CanonicalMIMEHeaderKey(key)
		resp.Headers.Add(lastKey, strings.TrimSpace(value))
	}

	body, err := io.ReadAll(tp.R)
	if err != nil {
		return resp, fmt.Errorf("read body: %w", err)
	}
	resp.Body = string(body)

	return resp, errors.Join(problems...)
}

// IsMalformed reports whether err only describes lenient-parse problems
// (unresolved status or skipped header lines) rather than a read failure.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedStatus) || errors.Is(err, ErrMalformedHeader)
}

// FromHTTPResponse копирует статус, заголовки и уже прочитанное тело
func FromHTTPResponse(resp *http.Response, body []byte) *ResponseHeader {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	return &ResponseHeader{
		Status:  resp.StatusCode,
		Reason:  reason,
		Proto:   resp.Proto,
		Headers: resp.Header.Clone(),
		Body:    string(body),
	}
}
