package domain

import (
	"time"
)

// ReportSource selects the retrieval strategy for a research run
type ReportSource string

const (
	ReportSourceWeb         ReportSource = "web"
	ReportSourceLocal       ReportSource = "local"
	ReportSourceHybrid      ReportSource = "hybrid"
	ReportSourceOnlineDocs  ReportSource = "online_documents"
	ReportSourceProvided    ReportSource = "provided_documents"
	ReportSourceVectorStore ReportSource = "vector_store"
)

// ReportType distinguishes a top-level research run from a subtopic pass.
// Subtopic passes do not re-append the primary query to the sub-query plan.
type ReportType string

const (
	ReportTypeResearch ReportType = "research_report"
	ReportTypeSubtopic ReportType = "subtopic_report"
)

// Document is a unit of retrieved content: raw text plus the identifier of
// where it came from (URL or file path). Immutable once produced.
type Document struct {
	RawContent string `json:"raw_content"`
	Source     string `json:"source"`
}

// SearchResult is a single hit returned by a retriever backend
type SearchResult struct {
	Href    string `json:"href"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"body,omitempty"`
}

// ResearchTask describes one research run. The query, source mode and
// source lists are fixed at creation; mutable run state (visited URLs,
// running cost, context) lives in the run-scoped state object.
type ResearchTask struct {
	ID                   string       `json:"id"`
	Query                string       `json:"query"`
	ReportSource         ReportSource `json:"report_source"`
	ReportType           ReportType   `json:"report_type"`
	SourceURLs           []string     `json:"source_urls,omitempty"`
	ComplementSourceURLs bool         `json:"complement_source_urls,omitempty"`
	DocumentURLs         []string     `json:"document_urls,omitempty"`
	Documents            []Document   `json:"documents,omitempty"`
	QueryDomains         []string     `json:"query_domains,omitempty"`
	VectorStoreFilter    []string     `json:"vector_store_filter,omitempty"`
	Verbose              bool         `json:"verbose"`
	CreatedAt            time.Time    `json:"created_at"`
}

// Event types emitted through the notification sink during a run
const (
	EventStartingResearch     = "starting_research"
	EventPlanningResearch     = "planning_research"
	EventSubQueries           = "subqueries"
	EventRunningSubQuery      = "running_subquery_research"
	EventAddedSourceURL       = "added_source_url"
	EventSubQueryNoContent    = "subquery_context_not_found"
	EventAnsweringFromMemory  = "answering_from_memory"
	EventNoLocalContent       = "no_local_content"
	EventResearchStepFinished = "research_step_finalized"
)
