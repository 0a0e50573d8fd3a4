package models

// CatalogQuestion is one entry of the fixed investor question catalog.
type CatalogQuestion struct {
	Category string `json:"category"`
	Question string `json:"question"`
}

// QuestionCatalog lists the questions founders may answer. Founders pick
// questions from it; they never author their own.
var QuestionCatalog = []CatalogQuestion{
	{Category: "problem", Question: "What problem are you solving, and for whom?"},
	{Category: "problem", Question: "Why is this problem urgent now?"},
	{Category: "product", Question: "How does your product solve the problem differently?"},
	{Category: "product", Question: "What is on your product roadmap for the next 12 months?"},
	{Category: "market", Question: "How large is your addressable market?"},
	{Category: "market", Question: "Who are your main competitors and how do you win?"},
	{Category: "traction", Question: "What traction have you achieved so far?"},
	{Category: "traction", Question: "How do you acquire customers and what does it cost?"},
	{Category: "business_model", Question: "How do you make money?"},
	{Category: "business_model", Question: "What are your unit economics?"},
	{Category: "team", Question: "Why is your team the right one to build this?"},
	{Category: "team", Question: "What key hires are you planning?"},
	{Category: "funding", Question: "How much are you raising and how will you use it?"},
	{Category: "funding", Question: "What milestones will this round get you to?"},
}

var catalogIndex = func() map[string]string {
	idx := make(map[string]string, len(QuestionCatalog))
	for _, q := range QuestionCatalog {
		idx[q.Question] = q.Category
	}
	return idx
}()

// QuestionCategory returns the category tag of a catalog question and
// whether the question is in the catalog.
func QuestionCategory(question string) (string, bool) {
	c, ok := catalogIndex[question]
	return c, ok
}
