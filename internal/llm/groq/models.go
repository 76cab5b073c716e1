package groq

// Model is an allow-listed completion model.
type Model struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DefaultModel is used when a request names no model.
const DefaultModel = "llama-3.3-70b-versatile"

// Models lists every model the service will forward to the completion API.
var Models = []Model{
	{ID: "llama-3.3-70b-versatile", Name: "Llama 3.3 70B Versatile"},
	{ID: "llama-3.1-8b-instant", Name: "Llama 3.1 8B Instant"},
	{ID: "llama3-70b-8192", Name: "Llama 3 70B"},
	{ID: "llama3-8b-8192", Name: "Llama 3 8B"},
	{ID: "mixtral-8x7b-32768", Name: "Mixtral 8x7B"},
	{ID: "gemma2-9b-it", Name: "Gemma 2 9B"},
}

var modelIndex = func() map[string]Model {
	m := make(map[string]Model, len(Models))
	for _, model := range Models {
		m[model.ID] = model
	}
	return m
}()

// SupportsModel reports whether id is on the allow-list.
func SupportsModel(id string) bool {
	_, ok := modelIndex[id]
	return ok
}
