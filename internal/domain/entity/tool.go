package entity

type ToolName string

const (
	ToolWebSearch       ToolName = "web_search"
	ToolFetchPage       ToolName = "fetch_page"
	ToolSQLQuery        ToolName = "sql_query"
	ToolSQLSchema       ToolName = "sql_schema"
	ToolDocumentSearch  ToolName = "document_search"
	ToolCurrencyConvert ToolName = "currency_convert"
)

func (t ToolName) String() string {
	return string(t)
}
