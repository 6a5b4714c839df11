// Package engine implements the broadcast state engine: the
// per-stream state machine that owns audio-timeline playback, derives
// avatar animation from tagged text, ticks state to subscribers and
// reconstructs correct state for viewers who join mid-playback.
package engine

import (
	"regexp"
	"strings"
)

// Expression is the avatar's facial expression.
type Expression string

const (
	ExpressionNeutral   Expression = "neutral"
	ExpressionHappy     Expression = "happy"
	ExpressionSad       Expression = "sad"
	ExpressionAngry     Expression = "angry"
	ExpressionThinking  Expression = "thinking"
	ExpressionConfused  Expression = "confused"
	ExpressionExcited   Expression = "excited"
	ExpressionSurprised Expression = "surprised"
	ExpressionSmug      Expression = "smug"
)

// Gesture is a one-shot or held body animation.
type Gesture string

const (
	// Special gestures, highest priority.
	GestureMagic     Gesture = "magic"
	GestureSpin      Gesture = "spin"
	GestureJump      Gesture = "jump"
	GestureCelebrate Gesture = "celebrate"

	// Body-motion gestures.
	GestureDance     Gesture = "dance"
	GestureShy       Gesture = "shy"
	GestureCute      Gesture = "cute"
	GestureThink     Gesture = "think"
	GestureNod       Gesture = "nod"
	GestureShakeHead Gesture = "shake_head"
	GestureBow       Gesture = "bow"

	// Arm-movement gestures, lowest priority. Producers drop these
	// in as filler language, so a showier gesture in the same text
	// always wins.
	GestureWave     Gesture = "wave"
	GesturePoint    Gesture = "point"
	GestureRaiseArm Gesture = "raise_arm"
	GestureLowerArm Gesture = "lower_arm"
	GestureClap     Gesture = "clap"
)

// gestureTier maps each gesture to its priority tier; 1 is highest.
var gestureTier = map[Gesture]int{
	GestureMagic:     1,
	GestureSpin:      1,
	GestureJump:      1,
	GestureCelebrate: 1,

	GestureDance:     2,
	GestureShy:       2,
	GestureCute:      2,
	GestureThink:     2,
	GestureNod:       2,
	GestureShakeHead: 2,
	GestureBow:       2,

	GestureWave:     3,
	GesturePoint:    3,
	GestureRaiseArm: 3,
	GestureLowerArm: 3,
	GestureClap:     3,
}

var expressions = map[Expression]bool{
	ExpressionNeutral:   true,
	ExpressionHappy:     true,
	ExpressionSad:       true,
	ExpressionAngry:     true,
	ExpressionThinking:  true,
	ExpressionConfused:  true,
	ExpressionExcited:   true,
	ExpressionSurprised: true,
	ExpressionSmug:      true,
}

// lookVectors maps look directives to fixed gaze targets in [-1,1].
var lookVectors = map[string][2]float64{
	"look_left":  {-0.8, 0},
	"look_right": {0.8, 0},
	"look_up":    {0, 0.6},
	"look_down":  {0, -0.6},
}

// MediaKind classifies a media request directive.
type MediaKind string

const (
	MediaKindGif   MediaKind = "gif"
	MediaKindVideo MediaKind = "video"
)

var mediaKinds = map[MediaKind]bool{
	MediaKindGif:   true,
	MediaKindVideo: true,
}

// MediaRequest is one kind:query directive found in utterance text.
type MediaRequest struct {
	Kind  MediaKind `json:"kind"`
	Query string    `json:"query"`
}

// ParsedUtterance is the structured result of interpreting bracketed
// directives in utterance text.
type ParsedUtterance struct {
	Expression    Expression
	Gesture       Gesture // empty = none
	LookX, LookY  float64
	MediaRequests []MediaRequest
	DisplayText   string
}

// tagPattern matches any bracket-shaped directive. Unrecognized
// content is still stripped so malformed tags never leak into
// subtitles.
var tagPattern = regexp.MustCompile(`\[(\w+)(?::([^\[\]]*))?\]`)

// Parse interprets every bracketed directive in text. It is pure and
// total: every input yields a result, unknown directives are stripped
// without setting any field.
func Parse(text string) ParsedUtterance {
	parsed := ParsedUtterance{Expression: ExpressionNeutral}

	gestureByTier := map[int]Gesture{}
	haveExpression := false
	haveLook := false

	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		token := strings.ToLower(m[1])
		query := strings.TrimSpace(m[2])

		if query != "" {
			kind := MediaKind(token)
			if mediaKinds[kind] {
				parsed.MediaRequests = append(parsed.MediaRequests, MediaRequest{Kind: kind, Query: query})
			}
			continue
		}

		if expr := Expression(token); expressions[expr] {
			// Only the first expression tag counts.
			if !haveExpression {
				parsed.Expression = expr
				haveExpression = true
			}
			continue
		}

		if g := Gesture(token); gestureTier[g] != 0 {
			tier := gestureTier[g]
			// First match within a tier wins.
			if _, ok := gestureByTier[tier]; !ok {
				gestureByTier[tier] = g
			}
			continue
		}

		if vec, ok := lookVectors[token]; ok {
			if !haveLook {
				parsed.LookX, parsed.LookY = vec[0], vec[1]
				haveLook = true
			}
			continue
		}
		// Unrecognized token: stripped, nothing set.
	}

	// Highest tier present wins overall.
	for tier := 1; tier <= 3; tier++ {
		if g, ok := gestureByTier[tier]; ok {
			parsed.Gesture = g
			break
		}
	}

	stripped := tagPattern.ReplaceAllString(text, " ")
	parsed.DisplayText = strings.Join(strings.Fields(stripped), " ")

	return parsed
}
