package outbox

const runScoredSchema = `{
  "type": "object",
  "title": "RunScored",
  "properties": {
    "run_id": {"type": "string"},
    "runner_id": {"type": "string"},
    "role": {"type": "string", "enum": ["marathoner", "sprinter"]},
    "distance_km": {"type": "number"},
    "lp_earned": {"type": "integer", "minimum": 1},
    "tier_lp": {"type": "integer", "minimum": 0},
    "started_at": {"type": "string", "format": "date-time"},
    "scored_at": {"type": "string", "format": "date-time"}
  },
  "required": ["run_id", "runner_id", "role", "distance_km", "lp_earned", "tier_lp", "started_at", "scored_at"],
  "additionalProperties": false
}`

const tierTransitionedSchema = `{
  "type": "object",
  "title": "TierTransitioned",
  "properties": {
    "runner_id": {"type": "string"},
    "role": {"type": "string", "enum": ["marathoner", "sprinter"]},
    "kind": {"type": "string", "enum": ["grade_up", "promotion"]},
    "from_tier": {"type": "string"},
    "from_grade": {"type": "integer", "minimum": 1, "maximum": 4},
    "tier": {"type": "string"},
    "grade": {"type": "integer", "minimum": 1, "maximum": 4},
    "lp": {"type": "integer", "minimum": 0},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["runner_id", "role", "kind", "from_tier", "from_grade", "tier", "grade", "lp", "occurred_at"],
  "additionalProperties": false
}`

const workoutRecordedSchema = `{
  "type": "object",
  "title": "WorkoutRecorded",
  "properties": {
    "runner_id": {"type": "string"},
    "source_id": {"type": "string"},
    "source_app": {"type": "string"},
    "role": {"type": "string", "enum": ["marathoner", "sprinter"]},
    "started_at": {"type": "string", "format": "date-time"},
    "distance_km": {"type": "number"},
    "duration_sec": {"type": "number"},
    "avg_heart_rate": {"type": "integer"},
    "max_heart_rate": {"type": "integer"},
    "calories": {"type": "integer"},
    "elevation_gain_m": {"type": "number"},
    "cadence": {"type": "integer"}
  },
  "required": ["runner_id", "source_id", "started_at", "distance_km", "duration_sec"],
  "additionalProperties": false
}`
