package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

var questionLabels = map[string]string{
	"q1": "Topics covered and level of mastery",
	"q2": "Evidence of learning",
	"q3": "Difficulties and strategies",
	"q4": "Connections and applications",
	"q5": "Additional comments",
}

func formatAnswers(b *strings.Builder, answers map[string]string) {
	ids := make([]string, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		label := questionLabels[id]
		if label == "" {
			label = id
		}
		fmt.Fprintf(b, "- %s: %s\n", label, strings.TrimSpace(answers[id]))
	}
}

func buildFeedbackPrompt(rc ReportContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are a secondary school %s instructor in Argentina reviewing a student's weekly progress report.
Write feedback in Spanish addressed to the student.

Return your answer STRICTLY in JSON format with this schema:
{
  "progress_score": <number 0-100>,
  "feedback": "<feedback for the student: strengths, improvements, next steps>",
  "requires_review": <true if the report is ambiguous, off-topic or worrying>
}

Student: %s
Week: %s to %s

Answers:
`, rc.Subject, rc.StudentName, rc.WeekStart.Format("2006-01-02"), rc.WeekEnd.Format("2006-01-02"))
	formatAnswers(&b, rc.Answers)

	if len(rc.Previous) > 0 {
		b.WriteString("\nEarlier reports of this student in the same subject (most relevant first):\n")
		for i, p := range rc.Previous {
			fmt.Fprintf(&b, "\nReport %d (week of %s):\n", i+1, p.WeekStart.Format("2006-01-02"))
			formatAnswers(&b, p.Answers)
			if p.Feedback != "" {
				fmt.Fprintf(&b, "Feedback given: %s\n", p.Feedback)
			}
		}
	}
	return b.String()
}

func buildExamPrompt(ec ExamContext) string {
	return fmt.Sprintf(`You are grading a %s exam on "%s" written by %s.
Reply in Spanish.

Return your answer STRICTLY in JSON format with this schema:
{
  "score": <number 0-100>,
  "feedback": "<feedback for the student>"
}

Exam:
%s
`, ec.Subject, ec.ExamTopic, ec.StudentName, ec.Content)
}

// extractJSON pulls the JSON object out of a model reply that may be wrapped
// in markdown fences or prose.
func extractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in model output")
	}
	raw := text[start : end+1]
	if !gjson.Valid(raw) {
		return "", fmt.Errorf("invalid JSON in model output")
	}
	return raw, nil
}

func parseFeedback(text string) (*GeneratedFeedback, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	content := gjson.Get(raw, "feedback").String()
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("model output has no feedback")
	}
	score := clampScore(gjson.Get(raw, "progress_score").Float())
	flagged := gjson.Get(raw, "requires_review").Bool()
	return &GeneratedFeedback{
		Content:        content,
		ProgressScore:  score,
		RequiresReview: NeedsReview(score, flagged, content),
	}, nil
}

func parseExam(text string) (*GradedExam, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	score := gjson.Get(raw, "score")
	if !score.Exists() {
		return nil, fmt.Errorf("model output has no score")
	}
	return &GradedExam{
		Score:    clampScore(score.Float()),
		Feedback: gjson.Get(raw, "feedback").String(),
	}, nil
}
