package ingest

import (
	"strings"

	"github.com/david/b2-radar/internal/models"
)

// StageRule maps a stage label to Group when the uppercased label contains any keyword.
type StageRule struct {
	Group    string
	Keywords []string
}

// StageRules are checked in order. Outcome groups come first so "Fechamento - Ganho"
// lands in won rather than closing.
var StageRules = []StageRule{
	{Group: models.StageGroupWon, Keywords: []string{"GANH", "WON"}},
	{Group: models.StageGroupLost, Keywords: []string{"PERDID", "CANCEL", "LOST"}},
	{Group: models.StageGroupClosing, Keywords: []string{"FECHAMENTO", "CONTRAT", "ASSINATURA"}},
	{Group: models.StageGroupNegotiation, Keywords: []string{"NEGOCIA", "PROPOSTA", "COTA"}},
	{Group: models.StageGroupQualification, Keywords: []string{"QUALIFICA", "PROSPEC", "LEAD", "CONTATO", "TRIAGEM"}},
}

// ClassifyStage returns the coarse group for a free-text stage label.
func ClassifyStage(stage string) string {
	label := strings.ToUpper(normalizeSpace(stage))
	if label == "" {
		return models.StageGroupNotInformed
	}
	for _, rule := range StageRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(label, kw) {
				return rule.Group
			}
		}
	}
	return models.StageGroupOther
}

// StageGroupOrder is the funnel order used by aggregations.
var StageGroupOrder = []string{
	models.StageGroupQualification,
	models.StageGroupNegotiation,
	models.StageGroupClosing,
	models.StageGroupWon,
	models.StageGroupLost,
	models.StageGroupOther,
	models.StageGroupNotInformed,
}
