package middleware

import "net/http"

// recorder notes the status a handler answered with. Flush and Unwrap pass
// through so event streams keep working behind it.
type recorder struct {
	http.ResponseWriter
	code int // 0 until the header is committed
}

func record(w http.ResponseWriter) *recorder { return &recorder{ResponseWriter: w} }

// status is the committed code, or 200 for a handler that wrote nothing.
func (r *recorder) status() int {
	if r.code == 0 {
		return http.StatusOK
	}
	return r.code
}

func (r *recorder) committed() bool { return r.code != 0 }

func (r *recorder) WriteHeader(code int) {
	if r.code == 0 {
		r.code = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.code == 0 {
		r.code = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *recorder) Flush() {
	if r.code == 0 {
		r.code = http.StatusOK
	}
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *recorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
