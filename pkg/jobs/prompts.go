package jobs

import (
	"fmt"
	"strings"
)

const postSystem = `You write LinkedIn posts for a professional audience.
Open with a strong hook, keep paragraphs short, use a few bullet points where they help,
and end with a question that invites comments. Stay under 1300 characters.
Return only the post text.`

const reelSystem = `You turn short-form video content into LinkedIn posts.
Extract the main lesson of the video, restate it for professionals in your own words,
and end with a question that invites comments. Stay under 1300 characters.
Return only the post text.`

func postPrompt(topic, extra string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a LinkedIn post about: %s\n", strings.TrimSpace(topic))
	if extra = strings.TrimSpace(extra); extra != "" {
		fmt.Fprintf(&b, "\nAdditional context:\n%s\n", extra)
	}
	return b.String()
}

func reelPrompt(transcript, description string) string {
	var b strings.Builder
	if transcript = strings.TrimSpace(transcript); transcript != "" {
		fmt.Fprintf(&b, "Video transcript:\n%s\n", transcript)
	}
	if description = strings.TrimSpace(description); description != "" {
		fmt.Fprintf(&b, "\nCreator's description:\n%s\n", description)
	}
	b.WriteString("\nWrite a LinkedIn post based on this video.")
	return b.String()
}

const improveSystem = `You edit LinkedIn posts. Keep the author's core message and voice,
address every piece of feedback, keep the hook strong and the paragraphs short,
and stay under 1300 characters. Return only the improved post text.`

const analysisSystem = `You are a LinkedIn content analyst. Return only valid JSON.`

// analysisCriteria are the scored dimensions of a post, in report order.
var analysisCriteria = []string{
	"hookStrength", "readability", "value", "specificity",
	"callToAction", "length", "hashtags", "engagementPotential",
}

func improvePrompt(post string, feedback []string) string {
	var b strings.Builder
	b.WriteString("Improve this post while maintaining its core message.\n\nORIGINAL POST:\n")
	b.WriteString(strings.TrimSpace(post))
	b.WriteString("\n\nFEEDBACK TO ADDRESS:\n")
	for i, point := range feedback {
		fmt.Fprintf(&b, "%d. %s\n", i+1, point)
	}
	b.WriteString("\nProvide the improved version only.")
	return b.String()
}

func analysisPrompt(post string) string {
	var b strings.Builder
	b.WriteString("Score this LinkedIn post from 0 to 10 on each criterion:\n")
	b.WriteString(strings.Join(analysisCriteria, ", "))
	b.WriteString(".\n\nRespond with a JSON object of the form\n")
	b.WriteString(`{"scores": {"hookStrength": 7, ...}, "suggestions": ["..."]}`)
	b.WriteString("\nGive at most five concrete suggestions.\n\nPOST:\n")
	b.WriteString(strings.TrimSpace(post))
	return b.String()
}
