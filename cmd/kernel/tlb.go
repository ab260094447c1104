package main

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// TLB cachea traducciones vpn -> marco de un espacio de direcciones. Con
// ENTRADAS_TLB en 0 queda deshabilitada y toda traducción recorre la tabla.
// La expulsión de una página purga la TLB completa del espacio de la
// víctima, igual que una recarga del registro de espacio de direcciones.
type TLB struct {
	cache *lru.Cache[int, int]
}

func nuevaTLB(entradas int) *TLB {
	if entradas <= 0 {
		return &TLB{}
	}
	cache, err := lru.New[int, int](entradas)
	if err != nil {
		return &TLB{}
	}
	return &TLB{cache: cache}
}

func (t *TLB) Buscar(vpn int) (int, bool) {
	if t.cache == nil {
		return 0, false
	}
	return t.cache.Get(vpn)
}

func (t *TLB) Actualizar(vpn, marco int) {
	if t.cache != nil {
		t.cache.Add(vpn, marco)
	}
}

func (t *TLB) Invalidar(vpn int) {
	if t.cache != nil {
		t.cache.Remove(vpn)
	}
}

func (t *TLB) Purgar() {
	if t.cache != nil {
		t.cache.Purge()
	}
}
