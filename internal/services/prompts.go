package services

import "fmt"

const skeletonPrompt = `You are a timeline researcher. Work out the overall structure of a timeline for the query below.

Query: %s

Reply with a JSON object containing:
- "topic": string, a short name for the timeline
- "date_range": object with "start" and "end", both ISO 8601 datetimes such as "2019-04-15T18:20:00Z"
- "anchor_events": array of the 5 to 10 most important events in chronological order, each with
  - "title": string
  - "date": ISO 8601 datetime string
  - "priority": one of "critical", "high", "medium", "low"

Every date must be an ISO 8601 string. Reply with the JSON object only.`

const investigatePrompt = `You are investigating one event on a timeline.

Event: %s
Date: %s
Context: %s

Reply with a JSON object containing:
- "sources": array of 5 to 10 credible sources, each with
  - "url": string, the article URL
  - "outlet": string, the publisher (for example "Reuters" or "BBC")
  - "credibility_score": number between 0.0 and 1.0
  - "publish_date": ISO 8601 datetime string
  - "claims": array of strings, the key claims made by this source
- "conflicts": array of strings describing contradictions between sources

Every date must be an ISO 8601 string and "claims" must be an array of strings. Reply with the JSON object only.`

const synthesizePrompt = `You are comparing sources about one event to find the competing accounts of what happened.

Event: %s
Sources:
%s

Reply with a JSON array. Each element is one narrative branch with:
- "narrative": string, this version of events
- "credibility_score": number between 0.0 and 1.0 reflecting source quality and agreement
- "evidence": string, the supporting facts or quotes combined into a single paragraph
- "source_count": integer, how many of the sources support this narrative

"evidence" must be a single string, not an array. Reply with the JSON array only.`

func buildSkeletonPrompt(query string) string {
	return fmt.Sprintf(skeletonPrompt, query)
}

func buildInvestigatePrompt(title, date, context string) string {
	return fmt.Sprintf(investigatePrompt, title, date, context)
}

func buildSynthesizePrompt(title, sourcesJSON string) string {
	return fmt.Sprintf(synthesizePrompt, title, sourcesJSON)
}
