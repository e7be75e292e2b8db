package decision

import (
	"encoding/json"
	"fmt"
)

// The trained random forest arrives as a JSON export from the cloud training
// job: a list of binary decision trees over the feature vector
// [humidity, ph, ec, water_level]. Inference walks every tree and majority
// votes the irrigate/hold verdict.

// Node is one tree node. Internal nodes carry a feature split, leaves carry a
// class (0 = hold, 1 = irrigate).
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Leaf      *int    `json:"leaf,omitempty"`
}

// Tree is a flat node array rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is the full exported model.
type Forest struct {
	Version  string   `json:"version"`
	Features []string `json:"features"`
	Trees    []Tree   `json:"trees"`
}

// FeatureCount is the width of the model input vector.
const FeatureCount = 4

// ParseForest decodes and validates an exported model.
func ParseForest(b []byte) (*Forest, error) {
	var f Forest
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("model decode: %w", err)
	}
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("model has no trees")
	}
	if len(f.Features) != FeatureCount {
		return nil, fmt.Errorf("model has %d features, want %d", len(f.Features), FeatureCount)
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return nil, fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Leaf != nil {
				if *n.Leaf != 0 && *n.Leaf != 1 {
					return nil, fmt.Errorf("tree %d node %d: leaf class %d", ti, ni, *n.Leaf)
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= FeatureCount {
				return nil, fmt.Errorf("tree %d node %d: feature index %d", ti, ni, n.Feature)
			}
			if n.Left < 0 || n.Left >= len(t.Nodes) || n.Right < 0 || n.Right >= len(t.Nodes) {
				return nil, fmt.Errorf("tree %d node %d: child out of range", ti, ni)
			}
		}
	}
	return &f, nil
}

// Predict returns 1 when the majority of trees vote to irrigate.
func (f *Forest) Predict(features [FeatureCount]float64) int {
	votes := 0
	for _, t := range f.Trees {
		votes += t.classify(features)
	}
	if votes*2 > len(f.Trees) {
		return 1
	}
	return 0
}

func (t *Tree) classify(features [FeatureCount]float64) int {
	i := 0
	// Node count bounds the walk; malformed cycles cannot loop forever.
	for steps := 0; steps <= len(t.Nodes); steps++ {
		n := t.Nodes[i]
		if n.Leaf != nil {
			return *n.Leaf
		}
		if features[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return 0
}
