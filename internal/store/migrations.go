package store

const createShiftRecordsTable = `
CREATE TABLE IF NOT EXISTS shift_records (
    id TEXT NOT NULL,
    team TEXT NOT NULL,
    date TEXT NOT NULL,
    start_time TEXT NOT NULL,
    end_time TEXT NOT NULL,
    code TEXT NOT NULL DEFAULT '',
    location TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT ''
);
`

const createShiftRecordsSlotIndex = `
CREATE INDEX IF NOT EXISTS shift_records_slot_idx
    ON shift_records (team, date, start_time, end_time);
`

var migrations = []string{
	createShiftRecordsTable,
	createShiftRecordsSlotIndex,
}
