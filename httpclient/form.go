package httpclient

import (
	"io"
	"mime/multipart"
)

// Form is a multipart/form-data body. Fields are written in the order they
// were set, files after them.
type Form struct {
	fields []formField
	files  []formFile
}

type formField struct{ name, value string }

type formFile struct {
	field, filename string
	r               io.Reader
}

// NewForm returns an empty form.
func NewForm() *Form { return &Form{} }

// Set adds a text field.
func (f *Form) Set(name, value string) *Form {
	f.fields = append(f.fields, formField{name, value})
	return f
}

// Attach adds a file part read from r when the request is sent.
func (f *Form) Attach(field, filename string, r io.Reader) *Form {
	f.files = append(f.files, formFile{field, filename, r})
	return f
}

// open starts encoding the form into a pipe. The transport closes the
// returned reader, which unblocks the writer if the request fails early.
func (f *Form) open() (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() { pw.CloseWithError(f.writeTo(mw)) }()
	return pr, mw.FormDataContentType()
}

func (f *Form) writeTo(mw *multipart.Writer) error {
	for _, fld := range f.fields {
		if err := mw.WriteField(fld.name, fld.value); err != nil {
			return err
		}
	}
	for _, file := range f.files {
		part, err := mw.CreateFormFile(file.field, file.filename)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, file.r); err != nil {
			return err
		}
	}
	return mw.Close()
}
