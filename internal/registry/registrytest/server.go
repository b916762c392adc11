// Package registrytest provides an in-memory registry served over httptest
// for exercising the registry client end to end.
package registrytest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Request records one call received by the fake.
type Request struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type failure struct {
	method string
	suffix string
	status int
	body   string
}

// Server is a fake registry. Resource names are "projects/{p}/locations/{l}/...".
type Server struct {
	*httptest.Server

	// Token, when set, is required as the bearer credential.
	Token string

	mu         sync.Mutex
	attributes map[string]json.RawMessage
	apis       map[string]json.RawMessage
	versions   map[string]map[string]json.RawMessage
	specs      map[string]json.RawMessage
	requests   []Request
	failures   []failure
	staleReads int
}

// New starts a fake registry that shuts down with the test.
func New(tb testing.TB) *Server {
	tb.Helper()
	s := &Server{
		attributes: make(map[string]json.RawMessage),
		apis:       make(map[string]json.RawMessage),
		versions:   make(map[string]map[string]json.RawMessage),
		specs:      make(map[string]json.RawMessage),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	tb.Cleanup(s.Close)
	return s
}

// FailNext makes the next request whose method matches and whose path ends
// with suffix answer with status and body.
func (s *Server) FailNext(method, suffix string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{method: method, suffix: suffix, status: status, body: body})
}

// StaleAttributeRead makes the next attribute lookup report not-found even
// when the attribute exists, as if another writer created it in between.
func (s *Server) StaleAttributeRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staleReads++
}

// SeedVersion creates an API version with the given raw attribute entries.
func (s *Server) SeedVersion(name string, attrs map[string]json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	apiName := name[:strings.LastIndex(name, "/versions/")]
	s.apis[apiName] = json.RawMessage(`{}`)
	cp := make(map[string]json.RawMessage, len(attrs))
	for k, v := range attrs {
		cp[k] = v
	}
	s.versions[name] = cp
}

// SeedAttribute stores an attribute definition under name.
func (s *Server) SeedAttribute(name string, def json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributes[name] = def
}

// HasAttribute reports whether an attribute definition exists.
func (s *Server) HasAttribute(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.attributes[name]
	return ok
}

// HasAPI reports whether an API record exists.
func (s *Server) HasAPI(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.apis[name]
	return ok
}

// HasSpec reports whether a spec record exists.
func (s *Server) HasSpec(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.specs[name]
	return ok
}

// VersionAttributes returns a copy of a version's attribute map.
func (s *Server) VersionAttributes(name string) (map[string]json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs, ok := s.versions[name]
	if !ok {
		return nil, false
	}
	cp := make(map[string]json.RawMessage, len(attrs))
	for k, v := range attrs {
		cp[k] = v
	}
	return cp, true
}

// Requests returns the calls received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// CountRequests counts calls with the given method whose path ends with suffix.
func (s *Server) CountRequests(method, suffix string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && strings.HasSuffix(r.Path, suffix) {
			n++
		}
	}
	return n
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})

	if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
		writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
		return
	}

	for i, f := range s.failures {
		if f.method == r.Method && strings.HasSuffix(r.URL.Path, f.suffix) {
			s.failures = append(s.failures[:i], s.failures[i+1:]...)
			writeError(w, f.status, f.body)
			return
		}
	}

	name := strings.TrimPrefix(r.URL.Path, "/v1/")
	segs := strings.Split(name, "/")
	if len(segs) < 5 || segs[0] != "projects" || segs[2] != "locations" {
		writeError(w, http.StatusNotFound, "unknown path")
		return
	}
	rest := segs[4:]
	q := r.URL.Query()

	switch {
	case len(rest) == 1 && rest[0] == "attributes" && r.Method == http.MethodPost:
		s.createIn(w, s.attributes, name+"/"+q.Get("attributeId"), body)
	case len(rest) == 2 && rest[0] == "attributes" && r.Method == http.MethodGet:
		if s.staleReads > 0 {
			s.staleReads--
			writeError(w, http.StatusNotFound, "attribute not found")
			return
		}
		s.get(w, s.attributes[name], name)
	case len(rest) == 1 && rest[0] == "apis" && r.Method == http.MethodPost:
		s.createIn(w, s.apis, name+"/"+q.Get("apiId"), body)
	case len(rest) == 2 && rest[0] == "apis" && r.Method == http.MethodGet:
		s.get(w, s.apis[name], name)
	case len(rest) == 3 && rest[2] == "versions" && r.Method == http.MethodPost:
		if _, ok := s.apis[strings.TrimSuffix(name, "/versions")]; !ok {
			writeError(w, http.StatusNotFound, "api not found")
			return
		}
		vname := name + "/" + q.Get("versionId")
		if _, ok := s.versions[vname]; ok {
			writeError(w, http.StatusConflict, "version already exists")
			return
		}
		s.versions[vname] = make(map[string]json.RawMessage)
		s.writeVersion(w, vname)
	case len(rest) == 4 && rest[2] == "versions" && r.Method == http.MethodGet:
		if _, ok := s.versions[name]; !ok {
			writeError(w, http.StatusNotFound, "version not found")
			return
		}
		s.writeVersion(w, name)
	case len(rest) == 4 && rest[2] == "versions" && r.Method == http.MethodPatch:
		s.patchVersion(w, name, q.Get("updateMask"), body)
	case len(rest) == 5 && rest[4] == "specs" && r.Method == http.MethodPost:
		if _, ok := s.versions[strings.TrimSuffix(name, "/specs")]; !ok {
			writeError(w, http.StatusNotFound, "version not found")
			return
		}
		s.createIn(w, s.specs, name+"/"+q.Get("specId"), body)
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
	}
}

func (s *Server) createIn(w http.ResponseWriter, coll map[string]json.RawMessage, name string, body []byte) {
	if strings.HasSuffix(name, "/") {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}
	if _, ok := coll[name]; ok {
		writeError(w, http.StatusConflict, name+" already exists")
		return
	}
	obj := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &obj); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	obj["name"] = name
	stored, _ := json.Marshal(obj)
	coll[name] = stored
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(stored)
}

func (s *Server) get(w http.ResponseWriter, obj json.RawMessage, name string) {
	if obj == nil {
		writeError(w, http.StatusNotFound, name+" not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(obj)
}

func (s *Server) writeVersion(w http.ResponseWriter, name string) {
	out, _ := json.Marshal(map[string]any{
		"name":       name,
		"attributes": s.versions[name],
	})
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(out)
}

// patchVersion replaces every field named in the mask. Only "attributes"
// is supported, and it is replaced as a whole.
func (s *Server) patchVersion(w http.ResponseWriter, name, mask string, body []byte) {
	if _, ok := s.versions[name]; !ok {
		writeError(w, http.StatusNotFound, "version not found")
		return
	}
	if mask != "attributes" {
		writeError(w, http.StatusBadRequest, "unsupported update mask "+mask)
		return
	}
	var in struct {
		Attributes map[string]json.RawMessage `json:"attributes"`
	}
	if err := json.Unmarshal(body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for k, v := range in.Attributes {
		var entry struct {
			EnumValues *struct {
				Values []json.RawMessage `json:"values"`
			} `json:"enumValues"`
		}
		if err := json.Unmarshal(v, &entry); err != nil {
			writeError(w, http.StatusBadRequest, "attribute "+k+": "+err.Error())
			return
		}
		if entry.EnumValues != nil && len(entry.EnumValues.Values) > 1 && s.cardinalityOne(k) {
			writeError(w, http.StatusBadRequest, "attribute "+k+" allows a single value")
			return
		}
	}
	if in.Attributes == nil {
		in.Attributes = make(map[string]json.RawMessage)
	}
	s.versions[name] = in.Attributes
	s.writeVersion(w, name)
}

func (s *Server) cardinalityOne(attrName string) bool {
	raw, ok := s.attributes[attrName]
	if !ok {
		return false
	}
	var def struct {
		Cardinality int `json:"cardinality"`
	}
	_ = json.Unmarshal(raw, &def)
	return def.Cardinality == 1
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	out, _ := json.Marshal(map[string]any{
		"error": map[string]any{"code": status, "message": msg},
	})
	_, _ = w.Write(out)
}
