package core

// error_messages.go maps technical errors to operator-facing messages.
//
// # Error Codes Reference
//
// Operators quote the code to support staff; support looks it up here.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key            Patterns: "duplicate key"
//	DB002 - Unique constraint        Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key              Patterns: "violates foreign key"
//	DB004 - Connection refused       Patterns: "connection refused"
//	DB005 - Connection reset         Patterns: "connection reset"
//	DB006 - Timeout                  Patterns: "timeout", "context deadline exceeded"
//	DB007 - Deadlock                 Patterns: "deadlock"
//	DB008 - Already stored           Patterns: "already persisted"
//	DB009 - Facility not stored      Patterns: "facility not persisted"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL003 - Incomplete user         Patterns: "incomplete user record"
//	VAL004 - Missing column          Patterns: "missing required column"
//	VAL007 - Missing other area      Patterns: "missing other area"
//	VAL008 - Duplicate document      Patterns: "duplicate document"
//	VAL009 - Facility name required  Patterns: "facility name is required"
//	VAL010 - Facility exists         Patterns: "facility already exists"
//	VAL011 - Facility not found      Patterns: "facility not found"
//	VAL012 - Facility in use         Patterns: "facility is referenced"
//	VAL013 - Unknown facility        Patterns: "unknown facility"
//	VAL014 - Row count               Patterns: "row count out of range"
//	VAL015 - Row not found           Patterns: "roster row not found"
//	VAL016 - Malformed request       Patterns: "invalid request body"
//	VAL017 - Invalid e-mail          Patterns: "invalid email address"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large         Patterns: "file too large"
//	FILE002 - Unreadable spreadsheet Patterns: "invalid spreadsheet"
//	FILE003 - Encoding error         Patterns: "encoding error"
//	FILE004 - No file                Patterns: "no file provided"
//	FILE005 - Empty file             Patterns: "empty file"
//	FILE006 - Unsupported type       Patterns: "unsupported file type"
//	FILE007 - Invalid snapshot       Patterns: "invalid snapshot"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - No facilities           Patterns: "no facilities registered"
//	IMP002 - System busy             Patterns: "too many concurrent imports"
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session not found       Patterns: "session not found"
//	SES002 - Session closed          Patterns: "session already submitted"
//	SES003 - Request cancelled       Patterns: "context canceled"
//
// # Mail Errors (MAIL001-MAIL099)
//
//	MAIL001 - Mail not sent          Patterns: "send mail"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited           Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check the application log for
// the technical error, which is always logged with the request id.
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Submission and database
	// =========================================================================
	{
		pattern: "already persisted",
		msg: UserMessage{
			Message: "Esta solicitud ya fue registrada",
			Action:  "No es necesario enviarla de nuevo",
			Code:    "DB008",
		},
	},
	{
		pattern: "facility not persisted",
		msg: UserMessage{
			Message: "Un usuario referencia una sede que no se guardó",
			Action:  "Revise la sede de cada usuario y envíe de nuevo",
			Code:    "DB009",
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "Ya existe un registro con este identificador",
			Action:  "Revise los documentos duplicados",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "Un valor que debe ser único ya existe",
			Action:  "Revise los datos duplicados",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "Se encontró un valor duplicado",
			Action:  "Revise los datos duplicados",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Un registro referenciado no existe",
			Action:  "Intente de nuevo o contacte a soporte",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "No fue posible conectar con la base de datos",
			Action:  "Intente de nuevo en unos momentos",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Se interrumpió la conexión con la base de datos",
			Action:  "Intente de nuevo",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "La base de datos estaba ocupada",
			Action:  "Intente de nuevo",
			Code:    "DB007",
		},
	},

	// =========================================================================
	// Roster and facility validation
	// =========================================================================
	{
		pattern: "incomplete user record",
		msg: UserMessage{
			Message: "Incompleto",
			Action:  "Complete nombres, apellidos, documento, correo, sede y ubicaciones",
			Code:    "VAL003",
		},
	},
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "Al archivo le faltan columnas de la plantilla",
			Action:  "Descargue la plantilla y copie los datos en ella",
			Code:    "VAL004",
		},
	},
	{
		pattern: "missing other area",
		msg: UserMessage{
			Message: "Falta Otra Área",
			Action:  "Si el área es OTRO, escriba cuál en 'Otra Area'",
			Code:    "VAL007",
		},
	},
	{
		pattern: "invalid email address",
		msg: UserMessage{
			Message: "Correo inválido",
			Action:  "Escriba un correo con el formato nombre@dominio.co",
			Code:    "VAL017",
		},
	},
	{
		pattern: "duplicate document",
		msg: UserMessage{
			Message: "Duplicado",
			Action:  "El documento ya está en la tabla de usuarios",
			Code:    "VAL008",
		},
	},
	{
		pattern: "facility name is required",
		msg: UserMessage{
			Message: "Nombre obligatorio",
			Action:  "Escriba el nombre de la sede",
			Code:    "VAL009",
		},
	},
	{
		pattern: "facility already exists",
		msg: UserMessage{
			Message: "Ya existe una sede con ese nombre",
			Action:  "Use un nombre distinto o edite la sede existente",
			Code:    "VAL010",
		},
	},
	{
		pattern: "facility not found",
		msg: UserMessage{
			Message: "La sede no existe",
			Action:  "Recargue la página e intente de nuevo",
			Code:    "VAL011",
		},
	},
	{
		pattern: "facility is referenced",
		msg: UserMessage{
			Message: "La sede tiene usuarios asignados",
			Action:  "Reasigne o elimine esos usuarios primero",
			Code:    "VAL012",
		},
	},
	{
		pattern: "unknown facility",
		msg: UserMessage{
			Message: "Sede incorrecta",
			Action:  "Seleccione una de las sedes registradas",
			Code:    "VAL013",
		},
	},
	{
		pattern: "row count out of range",
		msg: UserMessage{
			Message: "Cantidad de filas inválida",
			Action:  "Genere entre 1 y 50 filas",
			Code:    "VAL014",
		},
	},
	{
		pattern: "roster row not found",
		msg: UserMessage{
			Message: "La fila no existe",
			Action:  "Recargue la tabla de usuarios",
			Code:    "VAL015",
		},
	},
	{
		pattern: "invalid request body",
		msg: UserMessage{
			Message: "Los datos enviados no son válidos",
			Action:  "Revise el formulario e intente de nuevo",
			Code:    "VAL016",
		},
	},

	// =========================================================================
	// Files
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "El archivo supera el tamaño máximo",
			Action:  "Divida el archivo en partes más pequeñas",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid spreadsheet",
		msg: UserMessage{
			Message: "No fue posible leer el archivo",
			Action:  "Guarde el archivo como .xlsx o .csv e intente de nuevo",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "El archivo contiene caracteres inválidos",
			Action:  "Guarde el archivo con codificación UTF-8",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No se seleccionó ningún archivo",
			Action:  "Seleccione el archivo de usuarios",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "El archivo está vacío",
			Action:  "Cargue un archivo con filas de usuarios",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "Tipo de archivo no soportado",
			Action:  "Use la plantilla .xlsx o un archivo .csv",
			Code:    "FILE006",
		},
	},
	{
		pattern: "invalid snapshot",
		msg: UserMessage{
			Message: "El borrador no es válido",
			Action:  "Cargue un archivo JSON descargado desde este formulario",
			Code:    "FILE007",
		},
	},

	// =========================================================================
	// Import, session, mail, rate
	// =========================================================================
	{
		pattern: "no facilities registered",
		msg: UserMessage{
			Message: "Cree al menos una sede primero",
			Action:  "Registre las sedes antes de cargar usuarios",
			Code:    "IMP001",
		},
	},
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "El sistema está procesando otras cargas",
			Action:  "Espere un momento e intente de nuevo",
			Code:    "IMP002",
		},
	},
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "La sesión no existe o expiró",
			Action:  "Inicie un nuevo ingreso o restaure su borrador",
			Code:    "SES001",
		},
	},
	{
		pattern: "session already submitted",
		msg: UserMessage{
			Message: "La solicitud ya fue enviada",
			Action:  "Inicie un nuevo ingreso para registrar otro cliente",
			Code:    "SES002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "La solicitud fue cancelada",
			Action:  "Intente de nuevo",
			Code:    "SES003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "La operación tardó demasiado",
			Action:  "Intente de nuevo más tarde",
			Code:    "DB006",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "La operación tardó demasiado",
			Action:  "Intente de nuevo más tarde",
			Code:    "DB006",
		},
	},
	{
		pattern: "send mail",
		msg: UserMessage{
			Message: "No fue posible enviar el correo",
			Action:  "Los datos quedaron guardados; soporte reenviará el correo",
			Code:    "MAIL001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Demasiadas solicitudes",
			Action:  "Espere un momento antes de intentar de nuevo",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "Ocurrió un error inesperado",
	Action:  "Intente de nuevo o contacte a soporte",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, a generic fallback with code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Código: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Código: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// GatewayError wraps a failure of an external collaborator (database,
// mail relay, object store) with the operation that failed.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
