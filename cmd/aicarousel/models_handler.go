package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type modelDescriptor struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// advertisedModels is the fixed list shown to clients. Routing is not
// model-sensitive; model selection comes from the models config, so the
// legacy aliases here exist only for SDK pickers that need a known name.
var advertisedModels = []string{
	"aicarousel",
	"gpt-4",
	"gpt-3.5-turbo",
	"claude-3-5-sonnet-20241022",
}

func descriptor(id string) modelDescriptor {
	return modelDescriptor{
		ID:      id,
		Object:  "model",
		Created: time.Now().Unix(),
		OwnedBy: "aicarousel",
	}
}

// modelsHandler serves GET /v1/models.
func modelsHandler(w http.ResponseWriter, _ *http.Request) {
	data := make([]modelDescriptor, 0, len(advertisedModels))
	for _, id := range advertisedModels {
		data = append(data, descriptor(id))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"object": "list",
		"data":   data,
	})
}

// modelHandler serves GET /v1/models/{id}, echoing whatever ID the client
// asked about.
func modelHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(descriptor(chi.URLParam(r, "id")))
}
