package mood

import (
	"encoding/json"
	"testing"
)

func TestParseGesture(t *testing.T) {
	tests := []struct {
		in      string
		want    Gesture
		wantErr bool
	}{
		{"wave", Wave, false},
		{"Heart", Heart, false},
		{"ok", Ok, false},
		{"thumbsup", ThumbsUp, false},
		{"thumbs_up", ThumbsUp, false},
		{"THUMBS-UP", ThumbsUp, false},
		{"fist", Wave, true},
		{"", Wave, true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseGesture(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err: got %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMood_JSON(t *testing.T) {
	raw, err := json.Marshal(map[string]Mood{"m": Excited})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(raw) != `{"m":"excited"}` {
		t.Errorf("got %s", raw)
	}

	var m Mood
	if err := json.Unmarshal([]byte(`"sleepy"`), &m); err != nil || m != Sleepy {
		t.Errorf("Unmarshal: got %v, %v", m, err)
	}
	if err := json.Unmarshal([]byte(`"grumpy"`), &m); err == nil {
		t.Error("unknown mood accepted")
	}
}

func TestStrings(t *testing.T) {
	if Interact.String() != "interact" || Focused.String() != "focused" || ThumbsUp.String() != "thumbsup" {
		t.Error("unexpected names")
	}
	if Mood(42).String() != "mood(42)" {
		t.Errorf("out of range: %s", Mood(42))
	}
}
