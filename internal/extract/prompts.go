package extract

// Fixed task templates. KPI and risk extraction derive their retrieval
// queries from these rather than from user input, so the same entity
// always pulls the same context for the same task.

const kpiQueryTerms = "revenue, net income, operating margin, earnings per share, free cash flow, debt"

const riskQueryTerms = "risk factors, uncertainties, litigation, competition, regulation, market conditions"

const kpiPrompt = `You are a financial analyst extracting key performance indicators from financial documents.

Each context passage below is labeled [chunk N].

Context:
%s

Extract every KPI stated in the context. Respond with ONLY a JSON object of this exact shape:
{
  "kpis": [
    {
      "metric_name": "Revenue",
      "value": "$391.0B",
      "unit": "USD",
      "period": "FY2024",
      "source_chunk": 0,
      "confidence": 0.9
    }
  ]
}

Rules:
- "value" is the figure exactly as written in the context.
- "source_chunk" is the N of the [chunk N] the figure came from; use -1 if unclear.
- "confidence" is between 0 and 1.
- If the context states no KPIs, return {"kpis": []}.`

const riskPrompt = `You are a risk analyst reviewing financial documents.

Context:
%s

Classify every risk stated in the context. Respond with ONLY a JSON object of this exact shape, keeping every key even when its list is empty:
{
  "market": [],
  "operational": [],
  "financial": [],
  "regulatory": [],
  "competitive": [],
  "other": []
}

Each list holds short risk statements quoted or paraphrased from the context.`

const memoPrompt = `You are a senior investment analyst. Write a professional, concise investment memo.

Company: %s
Period: %s

KPIs:
%s

Risks:
%s

Additional context:
%s

Structure the memo with: Executive Summary, Financial Highlights, Key Risks, Recommendation.`

// strictRetryInstruction is appended for the single re-ask after a
// parse failure.
const strictRetryInstruction = `

Your previous reply could not be parsed. Respond with the JSON object ONLY: no prose, no markdown fences, no text before or after the JSON.`
