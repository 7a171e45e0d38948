// Package optimistic applies catalog mutations to every cached view before the
// server answers, then reconciles or rolls back once it does.
//
// Every operation follows the same protocol:
//
//  1. Cancel in-flight reads of the affected views, so a read that started before
//     the optimistic write cannot land after it.
//  2. Snapshot each affected view and apply the optimistic projection, atomically
//     per view (the snapshot is taken inside the same cache write).
//  3. Dispatch the request and wait for it to settle.
//  4. On success reconcile the views with the server entity and invalidate the
//     server-backed views; on failure roll every view back.
//
// Rollback restores the snapshot itself when the view still holds exactly the
// value this mutation wrote. If another mutation has written the view since, the
// inverse of this mutation is applied instead, leaving the other one intact.
//
// Updates and deletes of the same server id are serialized in arrival order.
package optimistic
