package formatter

import (
	"encoding/json"
	"strconv"

	"github.com/theoremus-urban-solutions/routemap/siri"
)

// ResponseBuilder serializes SIRI responses for the export endpoints
type ResponseBuilder struct {
	indent string
	header bool
}

type BuilderOption func(*ResponseBuilder)

// WithIndent pretty-prints JSON output using indent per level
func WithIndent(indent string) BuilderOption {
	return func(rb *ResponseBuilder) { rb.indent = indent }
}

// WithXMLHeader prefixes XML output with an <?xml?> declaration
func WithXMLHeader() BuilderOption {
	return func(rb *ResponseBuilder) { rb.header = true }
}

func NewResponseBuilder(opts ...BuilderOption) *ResponseBuilder {
	rb := &ResponseBuilder{}
	for _, o := range opts {
		o(rb)
	}
	return rb
}

// BuildJSON serializes res. A nil response encodes as an empty delivery.
func (rb *ResponseBuilder) BuildJSON(res *siri.SiriResponse) []byte {
	if res == nil {
		res = &siri.SiriResponse{}
	}
	var (
		b   []byte
		err error
	)
	if rb.indent != "" {
		b, err = json.MarshalIndent(res, "", rb.indent)
	} else {
		b, err = json.Marshal(res)
	}
	if err != nil {
		// only NaN or Inf coordinates can fail here
		return []byte(`{"error":` + strconv.Quote(err.Error()) + `}`)
	}
	return b
}
