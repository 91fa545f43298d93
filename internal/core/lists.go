package core

// Master value lists offered as dropdowns in forms and the spreadsheet
// template. Values are stored uppercase without accents.

// OtherSentinel is the Area value that requires a free-text OtherArea.
const OtherSentinel = "OTRO"

var (
	DocTypes = []string{"CC", "CE", "TI", "PA (PASAPORTE)", "PEP", "PPT"}

	EducationLevels = []string{
		"PRIMARIA", "SECUNDARIA", "TECNICO", "TECNOLOGO", "PROFESIONAL",
		"ESPECIALISTA", "MAGISTER", "DOCTORADO",
	}

	JobTitles = []string{
		"MIEMBROS FUERZAS MILITARES, POLICIA",
		"DIRECTORES, GERENTES Y PERSONAL ADMINISTRATIVO",
		"FISICOS",
		"FISICOS MEDICOS",
		"MEDICOS GENERALES",
		"MEDICOS ESPECIALISTAS",
		"MEDICOS NUCLEARES",
		"MEDICOS RADIONCOLOGOS",
		"MEDICOS RADIOLOGOS",
		"TECNICOS Y TECNOLOGOS EN IMAGENES DIAGNOSTICAS",
		"TECNICOS EN TECNOLOGOS EN RADIOTERAPIA",
		"TECNICOS Y TECNOLOGOS EN MEDICINA NUCLEAR",
		"OTROS TECNICOS Y TECNOLOGOS EN SALUD",
		"ODONTOLOGOS",
		"PROFESIONALES DE ENFERMERIA",
		"TECNICOS Y PROFESIONALES DEL NIVEL MEDIO DE ENFERMERIA",
		"PARAMEDICOS E INSTRUMENTADORES QUIRURGICOS",
		"OTROS PROFESIONALES DE LA SALUD",
		"VETERINARIOS",
		"TECNICOS Y ASISTENTES VETERINARIOS",
		"PROFESIONALES DE LA INGENIERIA",
		"QUIMICOS Y QUIMICOS FARMACEUTICOS",
		"PROFESIONALES DE LAS CIENCIAS NATURALES",
		"PROFESIONALES DE LA PROTECCION MEDIOAMBIENTAL",
		"DOCENTES E INVESTIGADORES",
		"TECNICOS Y TECNOLOGOS EN CIENCIAS NATURALES E INGENIERIA",
		"TECNICOS Y CONTROLADORES EN NAVEGACION MARITIMA Y AERONAUTICA",
		"FUNCIONARIOS E INSPECTORES GUBERNAMENTALES",
		"EMPLEADOS TRANSPORTE MATERIAL RADIACTIVO",
		"BOMBEROS",
		"MINEROS",
		"OBREROS MINAS",
		"OPERADORES PORTUARIOS",
		"OTROS TRABAJADORES INDUSTRIALES",
		"OTROS TRABAJADORES NIVEL TECNICO",
	}

	Occupations = []string{
		"MEDICO RADIOLOGO", "MEDICO CARDIOLOGO", "MEDICO ONCOLOGO", "MEDICO NUCLEAR",
		"MEDICO CIRUJANO", "MEDICO HEMODINAMISTA", "NEUROCIRUJANO", "CIRUJANO VASCULAR",
		"RESIDENTE", "ORTOPEDISTA", "ANESTESIOLOGO", "INSTRUMENTADOR QUIRURGICO",
		"JEFE ENFERMERIA", "AUX. ENFERMERIA", "TEC. EN IMAGENES", "TRANCRIPTOR",
		"ODONTOLOGO", "PERIODONCISTA", "ENDODONCISTA", "AUX. ODONTOLOGIA",
		"HIGIENE ORAL", "ING. BIOMEDICO", "FISICO MEDICO", "DOCENCIA", "INVESTIGACION",
		"OTRO",
	}

	Areas = []string{
		"RADIOLOGIA", "HEMODINAMIA", "CIRUGIA", "ODONTOLOGIA", "MEDICINA NUCLEAR",
		"RADIOTERAPIA", "VETERINARIA", "INDUSTRIA EQUIPOS", "INDUSTRIA FUENTES", OtherSentinel,
	}

	Coverages = []string{"ARL", "PARTICULAR"}

	Technologies = []string{"TLD", "OSL", "DIS"}

	BodyLocations = []string{
		"TORAX (CUERPO ENTERO)", "CRISTALINO", "ANILLO", "FETAL",
		"ZONA CONTROLADA", "ZONA SUPERVISADA",
	}

	Periodicities = []string{"MENSUAL", "BIMENSUAL", "TRIMESTRAL"}

	Genders = []string{"FEMENINO", "MASCULINO", "OTRO"}

	Months = []string{
		"ENERO", "FEBRERO", "MARZO", "ABRIL", "MAYO", "JUNIO", "JULIO",
		"AGOSTO", "SEPTIEMBRE", "OCTUBRE", "NOVIEMBRE", "DICIEMBRE",
	}
)

// MasterLists returns every list keyed the way clients request them.
func MasterLists() map[string][]string {
	return map[string][]string{
		"TIPO_DOC":        DocTypes,
		"NIVEL_EDUCATIVO": EducationLevels,
		"TITULO":          JobTitles,
		"OCUPACION":       Occupations,
		"AREA":            Areas,
		"COBERTURA":       Coverages,
		"TECNOLOGIA":      Technologies,
		"UBICACION_CORPO": BodyLocations,
		"PERIODICIDAD":    Periodicities,
		"GENERO":          Genders,
		"MESES":           Months,
	}
}
