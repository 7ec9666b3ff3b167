package pipeline

const agentName = "Initiative Update Assistant"

const agentInstructions = `You are an OKR Initiative Update Assistant. Your job is to help employees update initiative status in natural language.

When an employee provides an update:
1. If they don't specify which initiative, ask them to clarify from the available initiatives
2. Extract the status (on track, at risk, blocked); if it is unclear, ask
3. Extract any blockers, progress updates, or timeline changes
4. Format the update as JSON with fields: initiative_name, status, progress_percentage, blockers, notes, date

Be conversational but efficient. Always confirm which initiative they're updating.`

const parseInstruction = `Parse this CSV data into a JSON array of initiative objects. Each object should have: id, name, owner, status, progress_percentage, due_date, description, related_okr, blockers. Convert status to one of: "on_track", "at_risk", "blocked". progress_percentage is a number between 0 and 100. Here's the CSV: {initiatives_csv}`

const mergeInstruction = `Update the initiatives data {initiatives_data} with the new information from {chat_updates}. Return the complete updated JSON array of all initiatives.`

// chatContext prefixes every utterance so the agent can resolve references
// without its own copy of the snapshot.
const chatContext = "Current initiatives: %s. User update: %s"
