package attempts

import "permit-engine/internal/model"

var views = map[model.Status]model.StatusView{
	model.StatusReussi:   {Status: model.StatusReussi, Label: "Validé", Color: "green"},
	model.StatusEchoue:   {Status: model.StatusEchoue, Label: "Échoué", Color: "red"},
	model.StatusAbsent:   {Status: model.StatusAbsent, Label: "Absent", Color: "orange"},
	model.StatusNonSaisi: {Status: model.StatusNonSaisi, Label: "Non saisi", Color: "gray"},
}

// Describe returns the display label and color for a status. Unknown values
// are shown as non_saisi.
func Describe(s model.Status) model.StatusView {
	if v, ok := views[s]; ok {
		return v
	}
	return views[model.StatusNonSaisi]
}
