package elastic

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/require"
)

// fakeCluster is a minimal in-memory Elasticsearch serving the handful of
// endpoints the stores use.
type fakeCluster struct {
	mu       sync.Mutex
	indexes  map[string]map[string]map[string]any
	mappings map[string]map[string]any
	reject   map[string]string
	failing  bool
	requests []string
	nextID   int
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{
		indexes:  make(map[string]map[string]map[string]any),
		mappings: make(map[string]map[string]any),
		reject:   make(map[string]string),
	}
}

func newTestClient(t *testing.T, fc *fakeCluster) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(fc)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{Addresses: []string{srv.URL}, APIKey: "test-key"})
	require.NoError(t, err)
	return client
}

func (fc *fakeCluster) docs(index string) map[string]map[string]any {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	out := make(map[string]map[string]any, len(fc.indexes[index]))
	for k, v := range fc.indexes[index] {
		out[k] = v
	}
	return out
}

func (fc *fakeCluster) put(index, id string, doc map[string]any) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.indexes[index] == nil {
		fc.indexes[index] = make(map[string]map[string]any)
	}
	fc.indexes[index][id] = doc
}

func (fc *fakeCluster) setFailing(v bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.failing = v
}

func (fc *fakeCluster) requestLog() []string {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return append([]string(nil), fc.requests...)
}

func (fc *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	fc.requests = append(fc.requests, r.Method+" "+r.URL.Path)

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	index := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}
	body, _ := io.ReadAll(r.Body)

	if fc.failing && r.Method != http.MethodHead {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": map[string]any{"type": "internal_error", "reason": "boom"}})
		return
	}

	switch {
	case action == "" && r.Method == http.MethodHead:
		if _, ok := fc.indexes[index]; ok {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case action == "" && r.Method == http.MethodPut:
		var mapping map[string]any
		_ = json.Unmarshal(body, &mapping)
		fc.indexes[index] = make(map[string]map[string]any)
		fc.mappings[index] = mapping
		writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true, "index": index})
	case action == "" && r.Method == http.MethodDelete:
		delete(fc.indexes, index)
		delete(fc.mappings, index)
		writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
	case action == "_bulk":
		fc.bulk(w, index, body)
	case action == "_search":
		fc.search(w, index, body)
	case action == "_delete_by_query":
		fc.deleteByQuery(w, index, body)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"type": "unsupported", "reason": r.URL.Path}})
	}
}

func (fc *fakeCluster) indexMissing(w http.ResponseWriter, index string) bool {
	if _, ok := fc.indexes[index]; ok {
		return false
	}
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":  map[string]any{"type": "index_not_found_exception", "reason": "no such index [" + index + "]"},
		"status": 404,
	})
	return true
}

func (fc *fakeCluster) bulk(w http.ResponseWriter, index string, body []byte) {
	if fc.indexes[index] == nil {
		fc.indexes[index] = make(map[string]map[string]any)
	}

	var items []any
	hasErrors := false
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		var meta map[string]map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &meta); err != nil {
			continue
		}
		if !scanner.Scan() {
			break
		}
		var doc map[string]any
		_ = json.Unmarshal(scanner.Bytes(), &doc)

		id, _ := meta["index"]["_id"].(string)
		if id == "" {
			fc.nextID++
			id = "auto-" + strconv.Itoa(fc.nextID)
		}
		if reason, ok := fc.reject[id]; ok {
			hasErrors = true
			items = append(items, map[string]any{"index": map[string]any{
				"_id": id, "status": 400,
				"error": map[string]any{"type": "mapper_parsing_exception", "reason": reason},
			}})
			continue
		}
		fc.indexes[index][id] = doc
		items = append(items, map[string]any{"index": map[string]any{"_id": id, "status": 201, "result": "created"}})
	}
	writeJSON(w, http.StatusOK, map[string]any{"took": 1, "errors": hasErrors, "items": items})
}

type fakeQuery struct {
	Query struct {
		Term map[string]string `json:"term"`
	} `json:"query"`
	Aggs map[string]struct {
		Terms *struct {
			Field string `json:"field"`
			Size  int    `json:"size"`
		} `json:"terms"`
		Composite *struct {
			Size  int            `json:"size"`
			After map[string]any `json:"after"`
		} `json:"composite"`
	} `json:"aggs"`
}

func (fc *fakeCluster) matching(index string, q fakeQuery) []map[string]any {
	var out []map[string]any
	ids := make([]string, 0, len(fc.indexes[index]))
	for id := range fc.indexes[index] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		doc := fc.indexes[index][id]
		if termMatches(doc, q.Query.Term) {
			out = append(out, doc)
		}
	}
	return out
}

func termMatches(doc map[string]any, term map[string]string) bool {
	for field, want := range term {
		var got any
		if f, ok := strings.CutPrefix(field, "metadata."); ok {
			md, _ := doc["metadata"].(map[string]any)
			got = md[f]
		} else {
			got = doc[field]
		}
		if got != want {
			return false
		}
	}
	return true
}

func (fc *fakeCluster) search(w http.ResponseWriter, index string, body []byte) {
	if fc.indexMissing(w, index) {
		return
	}
	var q fakeQuery
	_ = json.Unmarshal(body, &q)
	docs := fc.matching(index, q)

	aggs := make(map[string]any)
	if agg, ok := q.Aggs["hashes"]; ok && agg.Terms != nil {
		var buckets []any
		seen := make(map[string]bool)
		for _, d := range docs {
			h, _ := d[agg.Terms.Field].(string)
			if !seen[h] && len(buckets) < agg.Terms.Size {
				seen[h] = true
				buckets = append(buckets, map[string]any{"key": h, "doc_count": 1})
			}
		}
		aggs["hashes"] = map[string]any{"buckets": buckets}
	}
	if agg, ok := q.Aggs["ids"]; ok && agg.Composite != nil {
		set := make(map[string]bool)
		for _, d := range docs {
			id, _ := d["article_id"].(string)
			set[id] = true
		}
		all := make([]string, 0, len(set))
		for id := range set {
			all = append(all, id)
		}
		sort.Strings(all)

		after, _ := agg.Composite.After["article_id"].(string)
		var page []string
		for _, id := range all {
			if after != "" && id <= after {
				continue
			}
			if len(page) == agg.Composite.Size {
				break
			}
			page = append(page, id)
		}
		var buckets []any
		for _, id := range page {
			buckets = append(buckets, map[string]any{"key": map[string]any{"article_id": id}, "doc_count": 1})
		}
		result := map[string]any{"buckets": buckets}
		if len(page) > 0 {
			result["after_key"] = map[string]any{"article_id": page[len(page)-1]}
		}
		aggs["ids"] = result
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"hits":         map[string]any{"total": map[string]any{"value": len(docs)}, "hits": []any{}},
		"aggregations": aggs,
	})
}

func (fc *fakeCluster) deleteByQuery(w http.ResponseWriter, index string, body []byte) {
	if fc.indexMissing(w, index) {
		return
	}
	var q fakeQuery
	_ = json.Unmarshal(body, &q)

	var deleted int
	for id, doc := range fc.indexes[index] {
		if termMatches(doc, q.Query.Term) {
			delete(fc.indexes[index], id)
			deleted++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted, "total": deleted})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
