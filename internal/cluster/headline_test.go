package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateHeadline(t *testing.T) {
	current := "Cyclone nears Queensland coast as winds strengthen"

	tests := map[string]struct {
		candidate string
		wantErr   string
	}{
		"valid replacement": {
			candidate: "Cyclone Alfred intensifies as thousands evacuate Queensland coast",
		},
		"six words is enough": {
			candidate: "Storm batters the southern coastline overnight",
		},
		"twenty words is still fine": {
			candidate: "Authorities warn residents to prepare for flooding as the slow moving storm system brings record rainfall across the state tonight",
		},
		"empty": {
			candidate: "",
			wantErr:   "empty",
		},
		"whitespace only": {
			candidate: "   \n\t  ",
			wantErr:   "empty",
		},
		"too short": {
			candidate: "Storm hits the coast today",
			wantErr:   "5 words",
		},
		"too long": {
			candidate: "Authorities warn residents to prepare for flooding as the slow moving storm system brings record heavy rainfall across the state tonight",
			wantErr:   "21 words",
		},
		"echoed prompt label": {
			candidate: "Here is your headline: cyclone gathers strength offshore",
			wantErr:   "placeholder",
		},
		"bracketed template": {
			candidate: "[A short headline describing the storm damage today]",
			wantErr:   "placeholder",
		},
		"instruction leak": {
			candidate: "Insert a punchy summary of the cyclone coverage here",
			wantErr:   "placeholder",
		},
		"identical to current title ignoring case": {
			candidate: "  cyclone nears queensland coast AS winds strengthen  ",
			wantErr:   "identical",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := ValidateHeadline(tc.candidate, current)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
