package domain

import "time"

// OutlierLabel — зарезервированная метка «вне кластера» (шум плотностной кластеризации).
const OutlierLabel = -1

// Cluster представляет один кластер документов пользователя.
type Cluster struct {
	ID        int64
	OwnerID   string
	ClusterID int
	Label     string
	Size      int
	Keywords  []string
	Centroid  []float64
	CreatedAt *time.Time
	UpdatedAt *time.Time
}

func NewCluster(ownerID string, clusterID int, label string, size int, keywords []string, centroid []float64) *Cluster {
	return &Cluster{
		OwnerID:   ownerID,
		ClusterID: clusterID,
		Label:     label,
		Size:      size,
		Keywords:  keywords,
		Centroid:  centroid,
	}
}

// ClusterAssignment — привязка документа к кластеру.
// Для выбросов ClusterID = OutlierLabel, Probability = nil.
type ClusterAssignment struct {
	DocumentID  string
	ClusterID   int
	Probability *float64
	IsOutlier   bool
}

func NewClusterAssignment(documentID string, clusterID int, probability float64) *ClusterAssignment {
	if clusterID == OutlierLabel {
		return &ClusterAssignment{
			DocumentID: documentID,
			ClusterID:  OutlierLabel,
			IsOutlier:  true,
		}
	}

	return &ClusterAssignment{
		DocumentID:  documentID,
		ClusterID:   clusterID,
		Probability: &probability,
	}
}
