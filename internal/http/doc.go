// Package http exposes the hall scheduling engine over JSON.
//
// The router exposes the following endpoints:
//   - GET /healthz: pings the backing store.
//   - GET /rooms, POST /rooms, GET/PUT/DELETE /rooms/{id}: room catalog exchanging
//     the `roomDTO` payload defined in room_handler.go. Deleting a room that slots
//     or bookings still reference answers 409 with error_code ROOM_IN_USE.
//   - POST /slots, GET/PUT/DELETE /slots/{id}, GET /rooms/{id}/slots?date=: recurring
//     slots exchanging `slotDTO`. Clocks are "HH:MM", dates "YYYY-MM-DD" and weekdays
//     short English names.
//   - POST /bookings, GET /bookings/{id}, POST /bookings/{id}/approve,
//     POST /bookings/{id}/cancel, GET /rooms/{id}/bookings?from=&to=&status=: one-off
//     bookings exchanging `bookingDTO` with RFC3339 instants.
//   - GET /rooms/{id}/availability?date=&sub_slot_minutes=: free periods of a date.
//   - GET /rooms/{id}/occurrences?from=&to=: dated slot and booking occurrences.
//   - POST /rooms/{id}/conflicts: checks a slot- or booking-shaped candidate
//     (optionally with exclude_id) without writing anything.
//
// Errors share one envelope: validation failures answer 422 with a field map,
// collisions 409 with a `conflicts` array, rejected status changes 409 with
// error_code INVALID_STATE and malformed bodies 400. Messages are Japanese.
package http
