// Package prompts holds the instruction text sent to the model by each step
// of the supervisor and researcher loops.
package prompts

import (
	"fmt"
	"strings"
	"time"
)

// ReadableDate formats t as "Mon Jan 02, 2006".
func ReadableDate(t time.Time) string {
	return t.Format("Mon Jan 02, 2006")
}

// Clarify asks whether the request needs a clarifying question.
func Clarify(conversation string, now time.Time) string {
	return fmt.Sprintf(`These are the messages exchanged so far with the user asking for a research report:
<Messages>
%s
</Messages>

Today's date is %s.

Assess whether you need to ask a clarifying question, or if the user has already provided enough information to start research.
If you have already asked a clarifying question in the history, you almost always do not need to ask another one.
Ask only when acronyms, abbreviations or the scope of the request are genuinely ambiguous.

If you need to ask a question, set need_clarification to true and put a concise, well-structured question in question.
If you do not, set need_clarification to false and put in verification a short acknowledgement that you will now start the research, briefly restating what you understood.`,
		conversation, ReadableDate(now))
}

// Brief asks for a research brief built from the conversation.
func Brief(conversation string, now time.Time) string {
	return fmt.Sprintf(`You will be given the messages exchanged so far with the user.
Translate them into a detailed and concrete research question that will guide the research.

<Messages>
%s
</Messages>

Today's date is %s.

Guidelines:
- Include every detail and preference the user gave.
- Leave unstated dimensions open instead of inventing constraints.
- Write the question in the first person, from the perspective of the user.
- Name preferred sources when the user mentioned any.`,
		conversation, ReadableDate(now))
}

// Supervisor is the system prompt of the research supervisor.
func Supervisor(now time.Time, maxIterations, maxUnits int) string {
	return fmt.Sprintf(`You are a research supervisor. Your job is to conduct research by calling the "conduct_research" tool. Today's date is %s.

Each conduct_research call starts an independent researcher that investigates one topic and returns condensed findings.
Call "think" to reflect before delegating and after each batch of results.
Call "research_complete" once the findings are sufficient to answer the research brief.

Limits:
- Use at most %d rounds of delegation in total.
- Delegate at most %d research units at once; extra units are refused.
- Prefer a single researcher for simple fact-finding; split only when subtopics are clearly independent.
- Describe every topic in full detail, researchers cannot see the brief or each other's work.`,
		ReadableDate(now), maxIterations, maxUnits)
}

// Researcher is the system prompt of a worker researcher.
func Researcher(now time.Time, maxIterations int) string {
	return fmt.Sprintf(`You are a research assistant conducting research on the user's input topic. Today's date is %s.

Use the "search" tool to gather information, then call "think" to assess what you found and what is missing.
Start with broad queries and narrow down as you learn more.
Stop when you can answer confidently: call "research_complete".
You have at most %d search/think rounds.`,
		ReadableDate(now), maxIterations)
}

// CompressSystem is the system prompt of the compression step.
func CompressSystem(now time.Time) string {
	return fmt.Sprintf(`You are a research assistant that has conducted research on a topic by calling several tools. Today's date is %s.

Clean up the findings while preserving every relevant statement and piece of information the researcher gathered.
Remove obviously irrelevant or duplicate content, but keep sources and their URLs.
Structure the output as: a list of queries and tool calls made, a fully comprehensive findings section with inline citations, and a numbered list of sources.`,
		ReadableDate(now))
}

// CompressHuman is the closing instruction of the compression step.
const CompressHuman = `All of the messages above are about research conducted by an AI researcher. Clean up these findings.

Do not summarize the information away. Return the raw information in a cleaner format and make sure every relevant source is preserved.`

// Summarize asks for a summary of raw page content.
func Summarize(content string, now time.Time) string {
	return fmt.Sprintf(`You are tasked with summarizing the raw content of a webpage retrieved from a web search. Today's date is %s.

Preserve the main topic, key facts, statistics, dates and names. Keep the summary to roughly 25-30 percent of the original length.
Then pick up to five important verbatim excerpts.

<webpage_content>
%s
</webpage_content>`,
		ReadableDate(now), content)
}

// Report asks for the final report from the brief and collected notes.
func Report(brief string, notes []string, conversation string, now time.Time) string {
	return fmt.Sprintf(`Based on all the research conducted, create a comprehensive, well-structured answer to the research brief. Today's date is %s.

<Research Brief>
%s
</Research Brief>

<Messages>
%s
</Messages>

<Findings>
%s
</Findings>

Write the report in markdown with headings, cite sources inline as [n] and end with a "### Sources" section listing every cited URL once.
Write in the same language as the user's messages.`,
		ReadableDate(now), brief, conversation, strings.Join(notes, "\n\n---\n\n"))
}
