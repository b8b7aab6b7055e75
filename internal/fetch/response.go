package fetch

import (
	"net/http"
	"strconv"
	"time"
)

// ResponseType mirrors the browser's Response.type.
type ResponseType string

const (
	TypeBasic  ResponseType = "basic"
	TypeCORS   ResponseType = "cors"
	TypeOpaque ResponseType = "opaque"
	TypeError  ResponseType = "error"
)

// Response is a fully buffered HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Type       ResponseType
	URL        string
}

// NewResponse builds a same-origin response.
func NewResponse(status int, contentType string, body []byte) *Response {
	h := make(http.Header)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &Response{StatusCode: status, Header: h, Body: body, Type: TypeBasic}
}

// Clone returns a deep copy so a stored copy and a returned copy never share
// header maps or body buffers.
func (r *Response) Clone() *Response {
	c := *r
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	c.Body = append([]byte(nil), r.Body...)
	return &c
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Cacheable reports whether the response may be persisted: only complete
// same-origin 200 responses are.
func (r *Response) Cacheable() bool {
	return r.StatusCode == http.StatusOK && r.Type == TypeBasic
}

// Date returns the parsed Date header.
func (r *Response) Date() (time.Time, bool) {
	v := r.Header.Get("Date")
	if v == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Serve copies the response onto w.
func (r *Response) Serve(w http.ResponseWriter) error {
	dst := w.Header()
	for k, vv := range r.Header {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
	dst.Set("Content-Length", strconv.Itoa(len(r.Body)))
	w.WriteHeader(r.StatusCode)
	_, err := w.Write(r.Body)
	return err
}
