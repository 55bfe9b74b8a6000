package mcpserver

// FormatsURI is the resource describing the value formats tools accept.
const FormatsURI = "plantbutler://formats"

// Formats tells LLM consumers how days, photos and alarms are written.
const Formats = `# plantbutler value formats

## Days
A day is a local calendar date written ` + "`YYYY-MM-DD`" + `, e.g. ` + "`2024-05-02`" + `.
Every timestamp within that local day belongs to it.

## Photo references
- ` + "`photo:<name>`" + ` points at a blob uploaded through upload_photo or the
  HTTP API. Use the ref returned by upload_photo as is.
- ` + "`file:///abs/path.jpg`" + ` points at a readable file on the host. It is
  checked once when added; unreadable files are dropped.

## Alarms
- ` + "`at`" + ` is RFC 3339, e.g. ` + "`2024-05-02T09:00:00+09:00`" + `.
- A time that has already passed is moved to the same clock time on the next
  day that is still ahead. The response carries the effective time.
- Setting an alarm also activates the task; cancel_alarm deactivates it and
  keeps the time.

## Chat rooms
read_room returns messages oldest first. Kinds are user_text, user_image
and bot_text.
`
