package domain

// VisualizationPoint — 2D-координата документа для визуализации.
// ClusterID денормализован из последней кластеризации (-1, если кластера нет).
type VisualizationPoint struct {
	OwnerID      string
	DocumentID   string
	X            float64
	Y            float64
	ClusterID    int
	ClusterLabel string
	Filename     string
}

func NewVisualizationPoint(ownerID, documentID string, x, y float64, clusterID int) *VisualizationPoint {
	return &VisualizationPoint{
		OwnerID:    ownerID,
		DocumentID: documentID,
		X:          x,
		Y:          y,
		ClusterID:  clusterID,
	}
}
