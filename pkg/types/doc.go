/*
Package types defines the core data structures shared by every part of the
pilot framework: the Item that flows through a component's state graph, the
ComponentConfig a component is constructed from, and the state enumeration
that both carry.

# Architecture

The types package is the foundation of the component runtime's data model.
It defines:

  - Item: the unit of work (pilot or unit) flowing through the framework
  - ItemType: the closed {pilot, unit} discriminant
  - State: the closed, ordered state enumeration, plus the FINAL subset
  - ComponentConfig: the recognised component construction options
  - BridgeAddress: the two endpoints (addr_in/addr_out) a bridge exposes

None of these types reach outside the process boundary on their own; the
bridge and component packages own serialisation and transport.

# State ordering

Item state progresses along a fixed, closed graph (see State and
PilotStates/UnitStates below). advance is the only operation permitted to
change an item's state (pkg/component). Compare reports the relative
order of two states within the same progression so tests can assert the
state-monotonicity property: each successive state-channel notification
for a given uid is equal to or later than the previous one.

# publish_full

Item carries an explicit PublishFull bool rather than a marker key. It is
set automatically by advance when an item's post-state lands in FINAL, and
is always stripped before the item crosses a queue boundary — queues only
ever carry canonical fields.
*/
package types
