package sample

// Representative offsets for the descriptive labels the phone's orientation
// feature emits when its numeric outputs are not the ones wired on the canvas.
var directionLexicon = map[string]float64{
	"平躺": 0.0,  // lying flat
	"橫擺": 0.0,  // landscape
	"左傾": -5.0, // tilted left
	"右傾": 5.0,  // tilted right
	"直立": 0.0,  // upright
	"倒立": 0.0,  // upside down
}

// LookupDirection maps a direction label to its representative offset.
func LookupDirection(label string) (float64, bool) {
	v, ok := directionLexicon[label]
	return v, ok
}
