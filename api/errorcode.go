package api

var (
	errorMessageMap = map[int64]string{
		999: "internal server error",

		1010: "invalid parameters",
		1011: "cannot parse request",

		1100: "session not found",
		1101: "cannot handle workflow event",

		1200: "surveillance table columns could not be resolved",
		1201: "cannot parse surveillance table",

		1300: "tile directory not found or unreadable",
		1301: "no tile group matches the requested variable",
		1302: "incompatible coordinate reference systems in tile group",

		1400: "no risk scores available for this session",
		1401: "cannot import boundary file",

		1500: "no spatial unit contains the requested point",
	}

	errorInternalServer = errorJSON(999)

	errorInvalidParameters  = errorJSON(1010)
	errorCannotParseRequest = errorJSON(1011)

	errorSessionNotFound = errorJSON(1100)
	errorWorkflowEvent   = errorJSON(1101)

	errorSchemaUnresolved = errorJSON(1200)
	errorTableParse       = errorJSON(1201)

	errorTileDirectory     = errorJSON(1300)
	errorUnknownTileGroup  = errorJSON(1301)
	errorReferenceMismatch = errorJSON(1302)

	errorNoRiskScores  = errorJSON(1400)
	errorBoundaryParse = errorJSON(1401)

	errorUnitNotFound = errorJSON(1500)
)

type ErrorResponse struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

// errorJSON converts an error code to a standardized error object
func errorJSON(code int64) ErrorResponse {
	var message string
	if msg, ok := errorMessageMap[code]; ok {
		message = msg
	} else {
		message = "unknown"
	}

	return ErrorResponse{
		Code:    code,
		Message: message,
	}
}
