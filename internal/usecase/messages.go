package usecase

// Greeting opens every transcript, written in the renderer's markdown dialect.
const Greeting = "¡Hola! 👋 Soy el asistente virtual de **COOTRADECUN**. Estoy aquí para ayudarte con:\n\n" +
	"📋 **Asociación:** Requisitos, auxilios y convenios\n" +
	"💰 **Nóminas:** Desprendibles, pagos y libranzas\n" +
	"🏠 **Vivienda:** Créditos y proyectos de vivienda\n\n" +
	"¿En qué puedo asistirte hoy?"

// Apology replaces the reply of any failed chat turn.
const Apology = "Lo siento, ocurrió un error al conectar con el servidor."

// DefaultMemberName is stored with every login; the backend knows members
// only by cedula.
const DefaultMemberName = "Asociado COOTRADECUN"
