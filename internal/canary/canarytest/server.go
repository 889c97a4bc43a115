// Package canarytest provides an in-process fake of the Canary Speech API
// for tests.
package canarytest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

const (
	PathToken           = "/v3/auth/tokens/get"
	PathCreateSubject   = "/v3/api/create-subject"
	PathBeginAssessment = "/v3/api/assessment/begin"
	PathEndAssessment   = "/v3/api/assessment/end"
	PathPoll            = "/v3/api/assessment/poll"
	PathListScores      = "/v3/api/list-scores"
	PathUploadPrefix    = "/upload/"
)

// PollReply is one scripted answer of the poll endpoint. A non-zero
// StatusCode other than 200 is sent without a body.
type PollReply struct {
	StatusCode int
	Status     string
}

// Request is a request as the fake received it.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Server answers the seven workflow calls. Fields configure the replies and
// must be set before the first request.
type Server struct {
	*httptest.Server

	AccessToken  string
	TokenStatus  int
	SubjectID    string
	AssessmentID string
	// ResponseCodes are the keys of the returned upload URLs.
	ResponseCodes []string
	// Statuses override the reply status code per path.
	Statuses map[string]int
	// Poll replies are consumed in order; the last one repeats.
	Poll   []PollReply
	Scores string

	mu       sync.Mutex
	requests []Request
	pollIdx  int
}

func NewServer(t testing.TB) *Server {
	s := &Server{
		AccessToken:   "test-access-token",
		SubjectID:     "subject-8f2c",
		AssessmentID:  "assessment-41d7",
		ResponseCodes: []string{"free_speech"},
		Statuses:      map[string]int{},
		Poll:          []PollReply{{Status: "completed"}},
		Scores: `{
			"assessmentId": "assessment-41d7",
			"subjectId": "subject-8f2c",
			"scores": [
				{"code": "vocal_biomarker_a", "data": {"result": 0.82}},
				{"code": "vocal_biomarker_b", "data": {"result": "low"}}
			]
		}`,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// UploadURL is the pre-signed URL the fake hands out for code.
func (s *Server) UploadURL(code string) string {
	return s.URL + PathUploadPrefix + code
}

// Requests returns every request received so far, in order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Calls counts requests whose path starts with prefix.
func (s *Server) Calls(prefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if strings.HasPrefix(r.Path, prefix) {
			n++
		}
	}
	return n
}

// Last returns the most recent request to a path starting with prefix.
func (s *Server) Last(prefix string) (Request, bool) {
	reqs := s.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if strings.HasPrefix(reqs[i].Path, prefix) {
			return reqs[i], true
		}
	}
	return Request{}, false
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	s.mu.Unlock()

	if code, ok := s.Statuses[r.URL.Path]; ok && code != http.StatusOK {
		http.Error(w, `{"message":"scripted failure"}`, code)
		return
	}

	if strings.HasPrefix(r.URL.Path, PathUploadPrefix) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusCreated)
		return
	}

	switch r.URL.Path {
	case PathToken:
		if s.TokenStatus != 0 && s.TokenStatus != http.StatusOK {
			http.Error(w, `{"message":"invalid api key"}`, s.TokenStatus)
			return
		}
		writeJSON(w, map[string]string{"accessToken": s.AccessToken, "refreshToken": "test-refresh-token"})
	case PathCreateSubject:
		writeJSON(w, map[string]string{"id": s.SubjectID})
	case PathBeginAssessment:
		urls := map[string]string{}
		for _, code := range s.ResponseCodes {
			urls[code] = s.UploadURL(code)
		}
		writeJSON(w, map[string]interface{}{"id": s.AssessmentID, "uploadUrls": urls})
	case PathEndAssessment:
		w.WriteHeader(http.StatusOK)
	case PathPoll:
		reply := s.nextPoll()
		if reply.StatusCode != 0 && reply.StatusCode != http.StatusOK {
			w.WriteHeader(reply.StatusCode)
			return
		}
		writeJSON(w, map[string]string{"status": reply.Status})
	case PathListScores:
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, s.Scores)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) nextPoll() PollReply {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Poll) == 0 {
		return PollReply{Status: "processing"}
	}
	reply := s.Poll[s.pollIdx]
	if s.pollIdx < len(s.Poll)-1 {
		s.pollIdx++
	}
	return reply
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
