package pscan

import (
	"errors"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/BetterCallFirewall/pscan/internal/models"
)

var ErrNotHTML = errors.New("response is not html")

// Source лениво разобранное HTML тело ответа. Разбор выполняется один раз,
// при первом обращении, и результат делится между всеми правилами сообщения.
type Source struct {
	resp *models.ResponseHeader

	once sync.Once
	doc  *goquery.Document
	err  error
}

func NewSource(resp *models.ResponseHeader) *Source {
	return &Source{resp: resp}
}

// IsHTML reports whether the response looks like an HTML document.
func (s *Source) IsHTML() bool {
	if s.resp == nil {
		return false
	}
	ct := s.resp.ContentType()
	if ct == "text/html" || ct == "application/xhtml+xml" {
		return true
	}
	if ct != "" {
		return false
	}
	head := strings.ToLower(strings.TrimSpace(s.resp.Body))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// Document returns the parsed HTML document.
func (s *Source) Document() (*goquery.Document, error) {
	s.once.Do(func() {
		if !s.IsHTML() {
			s.err = ErrNotHTML
			return
		}
		s.doc, s.err = goquery.NewDocumentFromReader(strings.NewReader(s.resp.Body))
	})
	return s.doc, s.err
}

// Title возвращает <title> документа или пустую строку
func (s *Source) Title() string {
	doc, err := s.Document()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
