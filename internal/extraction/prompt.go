package extraction

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are a precise financial document analyzer. Always return valid JSON arrays only."

// seedTerms seeds the instruction with likely term types. It is not an
// exhaustive filter: the model may return any term/value pair it finds.
var seedTerms = []string{
	"GST", "CGST", "SGST", "IGST", "VAT", "Service Tax", "TDS",
	"Surcharge", "Cess", "Invoice Total", "Net Amount", "Gross Amount",
	"Subtotal", "Discount", "Tax",
}

// BuildExtractionPrompt composes the structured-extraction user prompt for a
// single document's text.
func BuildExtractionPrompt(text string, totalPages int) string {
	var b strings.Builder
	b.WriteString("Extract ALL financial terms and their values from this invoice/financial document.\n\n")
	b.WriteString("IMPORTANT RULES:\n")
	b.WriteString("1. Find ALL monetary values and their associated terms\n")
	b.WriteString("2. Look for: " + strings.Join(seedTerms, ", ") + ", etc.\n")
	b.WriteString("3. Extract the EXACT term as written in the document (preserve original spelling/format)\n")
	b.WriteString("4. Extract numeric values only (remove currency symbols)\n")
	b.WriteString("5. For each term, capture surrounding context (evidence)\n")
	fmt.Fprintf(&b, "6. Estimate page number based on text position (1-%d)\n", totalPages)
	b.WriteString("7. Assign confidence score (0-100) based on clarity\n\n")
	b.WriteString("Return a JSON array with this EXACT structure:\n")
	b.WriteString(`[{"page": 1, "term": "GST", "value": "2340.00", "evidence": "GST (18%): Rs. 2,340.00 on taxable amount", "confidence": 98}]`)
	b.WriteString("\n\nDOCUMENT TEXT:\n")
	b.WriteString(text)
	b.WriteString("\n\nReturn ONLY the JSON array, no markdown, no explanation, no other text.")
	return b.String()
}

// AnswerSystemPrompt frames the query assistant role for grounded Q&A calls.
const AnswerSystemPrompt = "You are a financial data assistant that helps users query and understand their invoice data."

// BuildAnswerPrompt grounds a free-text question on the job's extracted data
// and a bounded tail of prior conversation turns.
func BuildAnswerPrompt(dataContext, conversation, question string) string {
	var b strings.Builder
	b.WriteString("You are a helpful financial data assistant. You have access to extracted financial data from invoices and can answer questions about them.\n\n")
	b.WriteString("Available Financial Data:\n")
	b.WriteString(dataContext)
	b.WriteString("\n\nPrevious conversation:\n")
	b.WriteString(conversation)
	b.WriteString("\n\nUser Question: " + question + "\n\n")
	b.WriteString("Instructions:\n")
	b.WriteString("- Answer the user's question based ONLY on the available data\n")
	b.WriteString("- Be specific and include exact values\n")
	b.WriteString("- If asking for totals, sum up the relevant values\n")
	b.WriteString("- If the data doesn't contain the answer, say so clearly\n")
	b.WriteString("- Format numbers with proper currency notation\n")
	b.WriteString("- Reference the source document and page when relevant\n")
	b.WriteString("- Be concise but helpful\n\n")
	b.WriteString("Answer:")
	return b.String()
}
