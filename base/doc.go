/*

Package base provides the seeded random generator shared by models and data splitting.

* Random Generator

*/
package base
