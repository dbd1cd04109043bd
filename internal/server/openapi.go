package server

import (
	"net/http"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Minimal OpenAPI 3 document model. Field order is the emitted order.
type apiDoc struct {
	OpenAPI    string                       `json:"openapi" yaml:"openapi"`
	Info       apiInfo                      `json:"info" yaml:"info"`
	Paths      map[string]map[string]apiOp  `json:"paths" yaml:"paths"`
	Components map[string]map[string]strMap `json:"components" yaml:"components"`
}

type apiInfo struct {
	Title   string `json:"title" yaml:"title"`
	Version string `json:"version" yaml:"version"`
}

type apiOp struct {
	Summary     string                `json:"summary" yaml:"summary"`
	Tags        []string              `json:"tags" yaml:"tags"`
	Parameters  []apiParam            `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *apiBody              `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   map[string]apiResp    `json:"responses" yaml:"responses"`
	Security    []map[string][]string `json:"security,omitempty" yaml:"security,omitempty"`
}

type apiParam struct {
	Name     string            `json:"name" yaml:"name"`
	In       string            `json:"in" yaml:"in"`
	Required bool              `json:"required" yaml:"required"`
	Schema   map[string]string `json:"schema" yaml:"schema"`
}

type apiBody struct {
	Description string                       `json:"description" yaml:"description"`
	Required    bool                         `json:"required" yaml:"required"`
	Content     map[string]map[string]strMap `json:"content" yaml:"content"`
}

type apiResp struct {
	Description string `json:"description" yaml:"description"`
}

type strMap = map[string]string

const cookieScheme = "sessionCookie"

// apiDocument builds the document from the route table.
func (s *Server) apiDocument() *apiDoc {
	doc := &apiDoc{
		OpenAPI: "3.0.3",
		Info:    apiInfo{Title: "tablegate", Version: s.cfg.Version},
		Paths:   make(map[string]map[string]apiOp),
		Components: map[string]map[string]strMap{
			"securitySchemes": {
				cookieScheme: {"type": "apiKey", "in": "cookie", "name": s.gate.Config().CookieName},
			},
		},
	}

	for _, rt := range s.routes() {
		op := apiOp{
			Summary:   rt.Summary,
			Tags:      []string{rt.Tag},
			Responses: responsesFor(rt),
		}
		for _, name := range pathParams(rt.Pattern) {
			typ := "string"
			if integerParams[name] {
				typ = "integer"
			}
			op.Parameters = append(op.Parameters, apiParam{
				Name: name, In: "path", Required: true, Schema: map[string]string{"type": typ},
			})
		}
		if rt.Body != "" {
			contentType := "application/json"
			if rt.Method == http.MethodPost {
				contentType = "application/x-www-form-urlencoded"
			}
			op.RequestBody = &apiBody{
				Description: rt.Body,
				Required:    true,
				Content:     map[string]map[string]strMap{contentType: {"schema": {"type": "object"}}},
			}
		}
		if !rt.Public {
			op.Security = []map[string][]string{{cookieScheme: {}}}
		}

		item, ok := doc.Paths[rt.Pattern]
		if !ok {
			item = make(map[string]apiOp)
			doc.Paths[rt.Pattern] = item
		}
		item[strings.ToLower(rt.Method)] = op
	}
	return doc
}

func responsesFor(rt route) map[string]apiResp {
	out := map[string]apiResp{"200": {Description: "OK"}}
	switch {
	case rt.Method == http.MethodDelete:
		out = map[string]apiResp{"204": {Description: "No Content"}, "303": {Description: "Redirect for browser clients"}}
	case rt.Method == http.MethodPost:
		out = map[string]apiResp{"204": {Description: "Session started"}, "303": {Description: "Redirect for browser clients"}}
	}
	if len(pathParams(rt.Pattern)) > 0 || rt.Body != "" {
		out["400"] = apiResp{Description: "Invalid input"}
	}
	if !rt.Public {
		out["401"] = apiResp{Description: "No valid session"}
		out["403"] = apiResp{Description: "Not allowed by policy"}
		out["502"] = apiResp{Description: "Store unreachable or statement failed"}
		out["504"] = apiResp{Description: "Statement timed out"}
	}
	return out
}

func (s *Server) apiDocsJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.apiDocument())
}

func (s *Server) apiDocsYAML(w http.ResponseWriter, r *http.Request) {
	out, err := yaml.Marshal(s.apiDocument())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(out)
}
