package models

import "strings"

// DanceStyle is one entry of the style picker together with the base prompt
// sent to the video model.
type DanceStyle struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	BasePrompt string `json:"-"`
}

var danceStyles = []DanceStyle{
	{ID: "hip-hop", Label: "Hip Hop", BasePrompt: "the pet dances hip hop with bouncy head nods and side steps, full body in frame, fixed camera"},
	{ID: "ballet", Label: "Ballet", BasePrompt: "the pet performs a graceful ballet pirouette on its hind legs, soft stage lighting, fixed camera"},
	{ID: "salsa", Label: "Salsa", BasePrompt: "the pet dances salsa with quick hip sways and paw steps, warm festive lighting"},
	{ID: "disco", Label: "Disco", BasePrompt: "the pet dances disco pointing a paw up and down under a glittering mirror ball"},
	{ID: "breakdance", Label: "Breakdance", BasePrompt: "the pet breakdances with a spin on the floor and a freeze pose, street background"},
	{ID: "robot", Label: "Robot", BasePrompt: "the pet does the robot dance with stiff mechanical moves, neon background"},
	{ID: "macarena", Label: "Macarena", BasePrompt: "the pet dances the macarena moving its paws in sequence, party background"},
}

// DanceStyles returns the catalogue in display order.
func DanceStyles() []DanceStyle {
	out := make([]DanceStyle, len(danceStyles))
	copy(out, danceStyles)
	return out
}

// LookupDanceStyle matches an id or a label, case-insensitively.
func LookupDanceStyle(value string) (DanceStyle, bool) {
	value = strings.TrimSpace(value)
	for _, style := range danceStyles {
		if strings.EqualFold(style.ID, value) || strings.EqualFold(style.Label, value) {
			return style, true
		}
	}
	return DanceStyle{}, false
}
