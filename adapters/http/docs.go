package http

import "net/http"

// OpenAPIDocument serves the resolved API document for whatever table is
// currently serving. The document is rendered once per pipeline run; this
// handler only hands out the bytes.
func (h *GatewayHandler) OpenAPIDocument(w http.ResponseWriter, r *http.Request) {
	data, ok := h.service.OpenAPIJSON()
	if !ok {
		writeJSONError(w, http.StatusServiceUnavailable, "No API document loaded")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write(data)
}
