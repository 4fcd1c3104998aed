package chroma

// chromaCollection represents a Chroma collection response.
type chromaCollection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// chromaUpsertRequest is the request body for upserting documents.
type chromaUpsertRequest struct {
	IDs        []string            `json:"ids"`
	Embeddings [][]float32         `json:"embeddings"`
	Metadatas  []map[string]string `json:"metadatas,omitempty"`
}

// chromaGetRequest is the request body for getting documents.
type chromaGetRequest struct {
	IDs     []string `json:"ids"`
	Include []string `json:"include"`
}

// chromaGetResponse is the response from getting documents.
type chromaGetResponse struct {
	IDs        []string            `json:"ids"`
	Metadatas  []map[string]string `json:"metadatas"`
	Embeddings [][]float32         `json:"embeddings"`
}

const (
	metaProjectID = "project_id"
	metaVersion   = "version"
)

func metadataOf(projectID, version string) map[string]string {
	return map[string]string{metaProjectID: projectID, metaVersion: version}
}
