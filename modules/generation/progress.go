package generation

// DefaultPhrases - 생성 중 순서대로 보여주는 문구 (실제 진행률과 무관)
var DefaultPhrases = []string{
	"Analyzing the script...",
	"Building the storyboard...",
	"Generating the first scenes...",
	"Creating the voiceover...",
	"Adding cinematic touches...",
	"Almost there, the video is nearly ready!",
}
