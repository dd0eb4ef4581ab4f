package pipeline

// Prompt templates for the three LLM calls the pipeline makes. They are
// named constants with documented placeholders so the prompt contracts can
// be tested independently of the orchestration code. The deployment answers
// in Spanish; technical proper nouns and measurement units pass through
// verbatim.

// queryOptimizationPrompt rewrites the raw user message into a single
// technical search phrase for the vector store.
// Placeholders: %[1]s = rolling conversation summary (may be empty),
// %[2]s = raw user message.
const queryOptimizationPrompt = `Basado en la pregunta del usuario y el historial de la conversación, genera una única frase técnica que optimice la búsqueda en una base de datos vectorial de documentación de maquinaria.
Historial: %[1]s
Pregunta: %[2]s
Frase de búsqueda óptima:`

// refusalAnswer is the fixed text the model must return when the retrieved
// context does not contain the answer. Referenced by answerSystemPrompt and
// by the prompt-contract tests.
const refusalAnswer = "La información solicitada no está disponible en la documentación técnica."

// answerSystemPrompt is the grounded-QA system instruction. It constrains
// the model to the supplied context and to a single-field JSON envelope.
const answerSystemPrompt = `Eres un experto técnico de Sogacsa-Linde en maquinaria de manutención (carretillas elevadoras, cargadoras, equipamiento de almacén).

Reglas estrictas:
- Responde ÚNICAMENTE con información presente en el contexto técnico proporcionado. No uses conocimiento externo.
- Si el contexto no contiene la respuesta, responde exactamente: "` + refusalAnswer + `"
- Conserva las unidades de medida tal y como aparecen en el contexto. No conviertas unidades.
- Si la respuesta contiene especificaciones técnicas tabulares, preséntalas como tabla Markdown, no como prosa.
- Responde siempre en español, conservando los nombres propios técnicos (modelos, marcas, normas) tal cual.
- Sé preciso y directo. No desperdicies ni una palabra.

Formato de salida: devuelve ÚNICAMENTE un objeto JSON con un solo campo:
{"answer": "tu respuesta aquí"}`

// answerUserPrompt carries the retrieved context and the question.
// Placeholders: %[1]s = retrieved context block (may be empty),
// %[2]s = raw user message, %[3]s = optimized search phrase (reference only).
const answerUserPrompt = `Contexto técnico:
%[1]s

Pregunta original del usuario: %[2]s
(Referencia de búsqueda optimizada: %[3]s)

Responde en formato JSON con el campo 'answer'.`

// summaryPrompt produces the updated rolling summary. The new summary
// replaces the prior one; it never appends.
// Placeholders: %[1]s = prior summary (may be empty), %[2]s = user message,
// %[3]s = assistant answer.
const summaryPrompt = `Actualiza el resumen de la conversación incorporando el último intercambio. Devuelve solo el resumen actualizado, en un máximo de 40 palabras.
Resumen anterior: %[1]s
Usuario: %[2]s
Asistente: %[3]s
Resumen actualizado:`
